// Package mapper turns one raw spreadsheet row into a Transaction.
package mapper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/transmailifier/transmailifier/internal/config"
	"github.com/transmailifier/transmailifier/internal/model"
)

// Row holds raw cell values keyed by field name. Only mapped fields are
// present.
type Row map[string]string

// Options carries the profile settings a row is mapped with.
type Options struct {
	Currency string // used when the row has no currency
	Layout   string // Go time layout; empty means spreadsheet serial dates
	Matchers []config.Matcher
}

// MappingError describes a row that cannot be turned into a Transaction.
type MappingError struct {
	Row    int // 1-based sheet row, 0 when unknown
	Field  string
	Value  string
	Reason string
}

func (e *MappingError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	if e.Value != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Value)
	}
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s", e.Row, msg)
	}
	return msg
}

// Map builds a Transaction from raw. The first matcher whose pattern matches
// the note and whose amount filter accepts the signed amount overrides fields.
func Map(raw Row, opts Options) (model.Transaction, error) {
	row := make(Row, len(raw))
	for k, v := range raw {
		row[k] = strings.TrimSpace(v)
	}

	amount, err := resolveAmount(row)
	if err != nil {
		return model.Transaction{}, err
	}

	state := decimal.Zero
	if v := row[config.FieldState]; v != "" {
		if state, err = ParseAmount(v); err != nil {
			return model.Transaction{}, &MappingError{Field: config.FieldState, Value: v, Reason: "invalid amount"}
		}
	}

	currency := opts.Currency
	if v := row[config.FieldCurrency]; v != "" {
		currency = v
	}

	date, err := parseTime(row[config.FieldTime], opts.Layout)
	if err != nil {
		return model.Transaction{}, &MappingError{Field: config.FieldTime, Value: row[config.FieldTime], Reason: "invalid date"}
	}

	p := model.TransactionParams{
		State:    state,
		Amount:   amount,
		Currency: currency,
		Time:     date,
		Category: optional(row, config.FieldCategory),
		Payee:    optional(row, config.FieldPayee),
		Note:     optional(row, config.FieldNote),
	}

	note := row[config.FieldNote]
	for _, m := range opts.Matchers {
		if !m.Matches(note) || !m.Accepts(amount) {
			continue
		}
		apply(&p, m.Values)
		break
	}
	return model.NewTransaction(p), nil
}

func apply(p *model.TransactionParams, v config.MatcherValues) {
	if v.Category != nil {
		p.Category = v.Category
	}
	if v.Payee != nil {
		p.Payee = v.Payee
	}
	if v.Note != nil {
		p.Note = v.Note
	}
	if v.Currency != nil {
		p.Currency = *v.Currency
	}
	if v.Uncategorized != nil {
		p.Uncategorized = *v.Uncategorized
	}
}

// resolveAmount reads the signed amount. A single amount column is taken as
// is; otherwise exactly one of income and expense must be nonzero, and a
// negative value in either is treated as a movement of the opposite kind.
func resolveAmount(row Row) (decimal.Decimal, error) {
	if v, ok := row[config.FieldAmount]; ok && v != "" {
		d, err := ParseAmount(v)
		if err != nil {
			return decimal.Zero, &MappingError{Field: config.FieldAmount, Value: v, Reason: "invalid amount"}
		}
		return d, nil
	}
	_, hasIncome := row[config.FieldIncome]
	_, hasExpense := row[config.FieldExpense]
	if !hasIncome && !hasExpense {
		return decimal.Zero, &MappingError{Field: config.FieldAmount, Reason: "required"}
	}

	income, err := parseOptionalAmount(row, config.FieldIncome)
	if err != nil {
		return decimal.Zero, err
	}
	expense, err := parseOptionalAmount(row, config.FieldExpense)
	if err != nil {
		return decimal.Zero, err
	}

	switch {
	case income.IsZero() == expense.IsZero():
		return decimal.Zero, &MappingError{Reason: "either income or expense required, not both"}
	case !expense.IsZero():
		if expense.IsNegative() {
			return expense.Abs(), nil
		}
		return expense.Neg(), nil
	default:
		return income, nil
	}
}

func parseOptionalAmount(row Row, field string) (decimal.Decimal, error) {
	v := row[field]
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := ParseAmount(v)
	if err != nil {
		return decimal.Zero, &MappingError{Field: field, Value: v, Reason: "invalid amount"}
	}
	return d, nil
}

// ParseAmount parses a decimal written with either '.' or ',' as the
// decimal separator. Spaces are dropped. When both separators appear the
// last one is the decimal point and the other must group thousands. A single
// ',' groups thousands only when exactly three digits follow it, so "1,500"
// is 1500 while "1500,50" is 1500.50. A single '.' is always the decimal
// point. Anything else is an error.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(" ", "", "\u00a0", "").Replace(s)
	if cleaned == "" {
		return decimal.Zero, errors.New("empty amount")
	}
	normalized, err := normalizeAmount(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", s, err)
	}
	return decimal.NewFromString(normalized)
}

func normalizeAmount(s string) (string, error) {
	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')

	var point, group byte
	switch {
	case lastDot >= 0 && lastComma >= 0:
		point, group = '.', ','
		if lastComma > lastDot {
			point, group = ',', '.'
		}
	case lastComma >= 0:
		group = ','
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			point, group = ',', 0
		}
	case lastDot >= 0:
		point = '.'
		if strings.Count(s, ".") > 1 {
			point, group = 0, '.'
		}
	}

	whole, frac := s, ""
	if point != 0 {
		i := strings.LastIndexByte(s, point)
		whole, frac = s[:i], s[i+1:]
		if frac == "" || strings.IndexByte(whole, point) >= 0 {
			return "", errors.New("misplaced decimal separator")
		}
	}
	if group != 0 && strings.IndexByte(whole, group) >= 0 {
		if !thousandsGroups(whole, group) {
			return "", fmt.Errorf("misplaced %q thousands separator", group)
		}
		whole = strings.ReplaceAll(whole, string(group), "")
	}
	if point == 0 {
		return whole, nil
	}
	return whole + "." + frac, nil
}

// thousandsGroups reports whether s (with an optional sign) is split by sep
// into a leading group of one to three digits followed by groups of three.
func thousandsGroups(s string, sep byte) bool {
	s = strings.TrimLeft(s, "+-")
	for i, g := range strings.Split(s, string(sep)) {
		if i == 0 && (len(g) < 1 || len(g) > 3) || i > 0 && len(g) != 3 {
			return false
		}
		for _, r := range g {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// maxSerialDate is 9999-12-31 in the 1900 date system.
const maxSerialDate = 2958465

// parseTime parses v with layout. Numeric values are also accepted as
// spreadsheet serial dates, the form xlsx date cells are stored in.
func parseTime(v, layout string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if layout != "" {
		t, err := time.ParseInLocation(layout, v, time.UTC)
		if err == nil {
			return t, nil
		}
		if _, numErr := strconv.ParseFloat(v, 64); numErr != nil {
			return time.Time{}, err
		}
	}
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return time.Time{}, err
	}
	if serial <= 0 || serial > maxSerialDate {
		return time.Time{}, fmt.Errorf("serial date %v out of range", serial)
	}
	return excelize.ExcelDateToTime(serial, false)
}

func optional(row Row, field string) *string {
	v, ok := row[field]
	if !ok || v == "" {
		return nil
	}
	return &v
}
