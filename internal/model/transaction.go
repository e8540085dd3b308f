package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/transmailifier/transmailifier/internal/id"
)

// TransactionParams holds the fields used to build a Transaction.
type TransactionParams struct {
	State         decimal.Decimal // balance after this transaction
	Amount        decimal.Decimal // negative = expense, positive = income
	Currency      string
	Time          time.Time
	Category      *string
	Payee         *string
	Note          *string
	Uncategorized bool // category is a placeholder
}

// Transaction is a single account movement read from a statement.
// It is immutable; use NewTransaction to build one.
type Transaction struct {
	state         decimal.Decimal
	amount        decimal.Decimal
	currency      string
	time          time.Time
	category      *string
	payee         *string
	note          *string
	uncategorized bool
}

// NewTransaction builds a Transaction. The time is truncated to its date in UTC.
func NewTransaction(p TransactionParams) Transaction {
	y, m, d := p.Time.Date()
	return Transaction{
		state:         p.State,
		amount:        p.Amount,
		currency:      p.Currency,
		time:          time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		category:      copyString(p.Category),
		payee:         copyString(p.Payee),
		note:          copyString(p.Note),
		uncategorized: p.Uncategorized,
	}
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Identifier returns the content hash used as the dedup key.
func (t Transaction) Identifier() string {
	return id.Transaction(t.time, t.currency, t.amount, t.state, t.Note())
}

func (t Transaction) State() decimal.Decimal  { return t.state }
func (t Transaction) Amount() decimal.Decimal { return t.amount }
func (t Transaction) Currency() string        { return t.currency }
func (t Transaction) Time() time.Time         { return t.time }

// IsIncome reports whether the amount is positive.
func (t Transaction) IsIncome() bool { return t.amount.IsPositive() }

// IsExpense reports whether the amount is negative.
func (t Transaction) IsExpense() bool { return t.amount.IsNegative() }

// Income returns the amount for incomes, zero otherwise.
func (t Transaction) Income() decimal.Decimal {
	if t.IsIncome() {
		return t.amount
	}
	return decimal.Zero
}

// Expense returns the absolute amount for expenses, zero otherwise.
func (t Transaction) Expense() decimal.Decimal {
	if t.IsExpense() {
		return t.amount.Abs()
	}
	return decimal.Zero
}

// Category returns the category and whether one is set.
func (t Transaction) Category() (string, bool) { return deref(t.category) }

// Payee returns the payee and whether one is set.
func (t Transaction) Payee() (string, bool) { return deref(t.payee) }

// Note returns the note, or "" when absent.
func (t Transaction) Note() string {
	s, _ := deref(t.note)
	return s
}

// HasCategory reports whether a real (non-placeholder) category is set.
func (t Transaction) HasCategory() bool {
	return t.category != nil && !t.uncategorized
}

// Uncategorized reports whether the category was marked as a placeholder.
func (t Transaction) Uncategorized() bool { return t.uncategorized }

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}
