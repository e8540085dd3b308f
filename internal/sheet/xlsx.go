package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSX opens Excel workbooks. The first worksheet is used unless Sheet names
// another one.
type XLSX struct {
	Sheet string
}

// Name returns the format name.
func (x *XLSX) Name() string { return "xlsx" }

// Extensions returns the handled file extensions.
func (x *XLSX) Extensions() []string { return []string{".xlsx", ".xlsm"} }

// Open reads the workbook at path.
func (x *XLSX) Open(path string) (Sheet, io.Closer, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	ws, err := newWorksheet(f, x.Sheet)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return ws, f, nil
}

// Worksheet is a Sheet backed by an excelize workbook.
type Worksheet struct {
	file *excelize.File
	name string
	rows [][]string
}

// NewWorksheet wraps an already open workbook. An empty name selects the
// first worksheet.
func NewWorksheet(f *excelize.File, name string) (*Worksheet, error) {
	return newWorksheet(f, name)
}

func newWorksheet(f *excelize.File, name string) (*Worksheet, error) {
	if name == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, fmt.Errorf("workbook has no worksheets")
		}
		name = list[0]
	} else if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		return nil, fmt.Errorf("worksheet %q not found", name)
	}

	// GetRows drops trailing empty rows, so its length is the last used row.
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading worksheet %q: %w", name, err)
	}
	return &Worksheet{file: f, name: name, rows: rows}, nil
}

// Cell returns the raw value at col/row. Dates come back as serial numbers.
func (w *Worksheet) Cell(col string, row int) (string, error) {
	cell := fmt.Sprintf("%s%d", col, row)
	v, err := w.file.GetCellValue(w.name, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", fmt.Errorf("reading cell %s: %w", cell, err)
	}
	return v, nil
}

// Row returns the raw values of one row, up to its last used cell.
func (w *Worksheet) Row(row int) ([]string, error) {
	if row < 1 || row > len(w.rows) {
		return nil, nil
	}
	return w.rows[row-1], nil
}

// LastRow returns the last non-empty row.
func (w *Worksheet) LastRow() int { return len(w.rows) }
