// Package ledger reads transactions out of a bank statement sheet using a
// profile, and summarizes them.
package ledger

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/transmailifier/transmailifier/internal/config"
	"github.com/transmailifier/transmailifier/internal/mapper"
	"github.com/transmailifier/transmailifier/internal/model"
	"github.com/transmailifier/transmailifier/internal/sheet"
)

// Ledger is one statement read through a profile. Iteration is lazy and
// every pass re-reads the sheet, so a Ledger can be walked any number of
// times.
type Ledger struct {
	sheet   sheet.Sheet
	profile config.Profile
	columns map[string]string // field -> column letter
	opts    mapper.Options
	closer  io.Closer
	summary *Summary
}

// Open binds a validated profile to s. Header-referenced columns are
// resolved here, from the profile's header row.
func Open(s sheet.Sheet, profile config.Profile) (*Ledger, error) {
	columns, err := resolveColumns(s, profile)
	if err != nil {
		return nil, err
	}
	timeCol, _ := profile.Column(config.FieldTime)
	return &Ledger{
		sheet:   s,
		profile: profile,
		columns: columns,
		opts: mapper.Options{
			Currency: profile.Config.Currency,
			Layout:   timeCol.Layout(),
			Matchers: profile.Config.Matchers,
		},
	}, nil
}

func resolveColumns(s sheet.Sheet, profile config.Profile) (map[string]string, error) {
	columns := make(map[string]string, len(profile.Data.Columns))
	var headers map[string]string
	for field, col := range profile.Data.Columns {
		if col.Column != "" {
			columns[field] = col.Column
			continue
		}
		if headers == nil {
			var err error
			if headers, err = readHeaders(s, profile); err != nil {
				return nil, err
			}
		}
		letter, ok := headers[strings.TrimSpace(col.Header)]
		if !ok {
			return nil, &config.ConfigError{
				Profile: profile.Name,
				Field:   "data.columns." + field,
				Reason:  fmt.Sprintf("header %q not found in row %d", col.Header, profile.Data.Rows.Header),
			}
		}
		columns[field] = letter
	}
	return columns, nil
}

// readHeaders maps header text to column letters. The first column wins
// when a header repeats.
func readHeaders(s sheet.Sheet, profile config.Profile) (map[string]string, error) {
	row := profile.Data.Rows.Header
	if row < 1 {
		return nil, &config.ConfigError{
			Profile: profile.Name,
			Field:   "data.rows.header",
			Reason:  "required when columns are referenced by header",
		}
	}
	cells, err := s.Row(row)
	if err != nil {
		return nil, fmt.Errorf("reading header row %d: %w", row, err)
	}
	headers := make(map[string]string, len(cells))
	for i, text := range cells {
		text = strings.TrimSpace(text)
		if _, seen := headers[text]; text == "" || seen {
			continue
		}
		letter, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		headers[text] = letter
	}
	return headers, nil
}

// Name returns the profile name.
func (l *Ledger) Name() string { return l.profile.Name }

// Currency returns the profile's default currency.
func (l *Ledger) Currency() string { return l.profile.Config.Currency }

// Description returns the validator's expected value, or the profile name.
// It is also the notification subject.
func (l *Ledger) Description() string { return l.profile.Description() }

// NotificationAddresses returns the profile's recipients.
func (l *Ledger) NotificationAddresses() []string { return slices.Clone(l.profile.Mails) }

// Fetch reads one cell by A1 coordinates. Invalid coordinates and empty
// cells report false.
func (l *Ledger) Fetch(cell string) (string, bool) { return fetch(l.sheet, cell) }

func fetch(s sheet.Sheet, cell string) (string, bool) {
	col, row, err := excelize.SplitCellName(strings.TrimSpace(cell))
	if err != nil {
		return "", false
	}
	v, err := s.Cell(col, row)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// Transactions yields transactions in sheet order, or bottom-up when the
// profile is reversed. Rows with every mapped cell empty are skipped. The
// sequence stops after the first error.
func (l *Ledger) Transactions() iter.Seq2[model.Transaction, error] {
	return func(yield func(model.Transaction, error) bool) {
		for row := range l.rows() {
			raw, err := l.readRow(row)
			if err != nil {
				yield(model.Transaction{}, err)
				return
			}
			if raw == nil {
				continue
			}
			txn, err := mapper.Map(raw, l.opts)
			if err != nil {
				var merr *mapper.MappingError
				if errors.As(err, &merr) {
					merr.Row = row
				}
				yield(model.Transaction{}, err)
				return
			}
			if !yield(txn, nil) {
				return
			}
		}
	}
}

// rows yields data row numbers in iteration order.
func (l *Ledger) rows() iter.Seq[int] {
	start, last := l.profile.StartRow(), l.sheet.LastRow()
	return func(yield func(int) bool) {
		if l.profile.Config.Reverse {
			for row := last; row >= start; row-- {
				if !yield(row) {
					return
				}
			}
			return
		}
		for row := start; row <= last; row++ {
			if !yield(row) {
				return
			}
		}
	}
}

// readRow returns nil for a blank row.
func (l *Ledger) readRow(row int) (mapper.Row, error) {
	raw := make(mapper.Row, len(l.columns))
	blank := true
	for field, col := range l.columns {
		v, err := l.sheet.Cell(col, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if strings.TrimSpace(v) != "" {
			blank = false
		}
		raw[field] = v
	}
	if blank {
		return nil, nil
	}
	return raw, nil
}

// All drains Transactions into a slice.
func (l *Ledger) All() ([]model.Transaction, error) {
	var txns []model.Transaction
	for txn, err := range l.Transactions() {
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// Summary summarizes the ledger once and caches the result.
func (l *Ledger) Summary() (*Summary, error) {
	if l.summary != nil {
		return l.summary, nil
	}
	s, err := Summarize(l)
	if err != nil {
		return nil, err
	}
	l.summary = s
	return s, nil
}

// Close releases the underlying file when the ledger was opened by a Reader.
func (l *Ledger) Close() error {
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}
