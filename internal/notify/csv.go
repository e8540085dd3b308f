package notify

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/transmailifier/transmailifier/internal/model"
)

// Header is the CSV header of the notification attachment.
const Header = "date,amount,state,currency,category,payee,note"

const (
	numFields   = 7
	dateFormat  = "2006-01-02"
	colDate     = 0
	colAmount   = 1
	colState    = 2
	colCurrency = 3
	colCategory = 4
	colPayee    = 5
	colNote     = 6
)

// WriteCSV writes txns, including the header, to w.
func WriteCSV(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range txns {
		if err := cw.Write(MarshalTransaction(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads transactions written by WriteCSV.
func ReadCSV(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var txns []model.Transaction
	for i, rec := range records[1:] {
		t, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(t model.Transaction) []string {
	row := make([]string, numFields)
	row[colDate] = t.Time().Format(dateFormat)
	row[colAmount] = money(t.Amount())
	row[colState] = money(t.State())
	row[colCurrency] = t.Currency()
	if c, ok := t.Category(); ok && !t.Uncategorized() {
		row[colCategory] = c
	}
	row[colPayee], _ = t.Payee()
	row[colNote] = t.Note()
	return row
}

// UnmarshalTransaction converts a CSV row to a Transaction.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}
	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}
	state, err := decimal.NewFromString(record[colState])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing state %q: %w", record[colState], err)
	}

	return model.NewTransaction(model.TransactionParams{
		Time:     date,
		Amount:   amount,
		State:    state,
		Currency: record[colCurrency],
		Category: nonEmpty(record[colCategory]),
		Payee:    nonEmpty(record[colPayee]),
		Note:     nonEmpty(record[colNote]),
	}), nil
}

// money renders at least two decimals without dropping precision.
func money(d decimal.Decimal) string {
	if d.Exponent() >= -2 {
		return d.StringFixed(2)
	}
	return d.String()
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
