package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CSV opens delimited text exports. When Comma is zero the delimiter is
// sniffed from the first line (comma, semicolon or tab).
type CSV struct {
	Comma rune
}

// Name returns the format name.
func (c *CSV) Name() string { return "csv" }

// Extensions returns the handled file extensions.
func (c *CSV) Extensions() []string { return []string{".csv"} }

// Open reads the whole file at path.
func (c *CSV) Open(path string) (Sheet, io.Closer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	s, err := ParseCSV(bytes.NewReader(data), c.Comma)
	if err != nil {
		return nil, nil, err
	}
	return s, s, nil
}

// Records is a Sheet over in-memory rows.
type Records struct {
	rows [][]string
}

// ParseCSV reads all records from r. Rows may have differing field counts.
func ParseCSV(r io.Reader, comma rune) (*Records, error) {
	br := bufio.NewReader(r)
	if comma == 0 {
		comma = sniffComma(br)
	}
	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(rows) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return &Records{rows: rows}, nil
}

// NewRecords returns a Sheet over rows; rows[0] is row 1.
func NewRecords(rows [][]string) *Records {
	return &Records{rows: rows}
}

func sniffComma(br *bufio.Reader) rune {
	line, _ := br.Peek(br.Size())
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, count := ',', 0
	for _, c := range []rune{',', ';', '\t'} {
		if n := bytes.Count(line, []byte(string(c))); n > count {
			best, count = c, n
		}
	}
	return best
}

// Cell returns the value at col/row, or "" outside the data.
func (r *Records) Cell(col string, row int) (string, error) {
	idx, err := excelize.ColumnNameToNumber(col)
	if err != nil {
		return "", err
	}
	if row < 1 || row > len(r.rows) {
		return "", nil
	}
	rec := r.rows[row-1]
	if idx > len(rec) {
		return "", nil
	}
	return rec[idx-1], nil
}

// Row returns the fields of one record.
func (r *Records) Row(row int) ([]string, error) {
	if row < 1 || row > len(r.rows) {
		return nil, nil
	}
	return r.rows[row-1], nil
}

// LastRow returns the number of records.
func (r *Records) LastRow() int { return len(r.rows) }

// Close is a no-op; records are held in memory.
func (r *Records) Close() error { return nil }
