// Package sheet provides row- and column-addressed access to spreadsheet
// files.
package sheet

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
)

// Sheet is a single worksheet. Rows are 1-based, columns are letters ("A",
// "AB"). Cells outside the used range read as "".
type Sheet interface {
	Cell(col string, row int) (string, error)
	Row(row int) ([]string, error)
	LastRow() int
}

// Format opens files of one spreadsheet type.
type Format interface {
	Name() string
	Extensions() []string
	Open(path string) (Sheet, io.Closer, error)
}

// Registry maps file extensions to formats.
type Registry struct {
	formats map[string]Format
}

// NewRegistry creates an empty format registry.
func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]Format)}
}

// Register adds a format under each of its extensions. Panics on duplicate
// extension.
func (r *Registry) Register(f Format) {
	for _, ext := range f.Extensions() {
		key := strings.ToLower(ext)
		if _, ok := r.formats[key]; ok {
			panic("duplicate sheet extension: " + key)
		}
		r.formats[key] = f
	}
}

// Get returns the format for ext (".xlsx"), or nil.
func (r *Registry) Get(ext string) Format {
	return r.formats[strings.ToLower(ext)]
}

// Extensions lists registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.formats))
	for ext := range r.formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Open picks a format by the file extension and opens path with it.
func (r *Registry) Open(path string) (Sheet, io.Closer, error) {
	ext := filepath.Ext(path)
	f := r.Get(ext)
	if f == nil {
		return nil, nil, fmt.Errorf("unsupported sheet type %q (supported: %s)", ext, strings.Join(r.Extensions(), ", "))
	}
	s, c, err := f.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s sheet %s: %w", f.Name(), path, err)
	}
	return s, c, nil
}

// DefaultRegistry returns a registry with all built-in formats.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&XLSX{})
	r.Register(&CSV{})
	return r
}
