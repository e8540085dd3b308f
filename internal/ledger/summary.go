package ledger

import (
	"fmt"
	"iter"

	"github.com/shopspring/decimal"

	"github.com/transmailifier/transmailifier/internal/model"
)

// tolerance is the largest accepted gap between the computed and the
// statement final balance.
var tolerance = decimal.New(1, -6)

// ReconciliationError reports a ledger whose amounts do not add up, or a
// transaction that is neither income nor expense.
type ReconciliationError struct {
	Reason   string
	Initial  decimal.Decimal
	Total    decimal.Decimal
	Expected decimal.Decimal // final balance from the statement
	Actual   decimal.Decimal // initial + total
	Currency string
}

func (e *ReconciliationError) Error() string {
	if e.Expected.Equal(e.Actual) {
		return e.Reason
	}
	return fmt.Sprintf("%s: initial %s + total %s = %s %s, statement final balance is %s %s",
		e.Reason,
		e.Initial.StringFixed(2), e.Total.StringFixed(2), e.Actual.StringFixed(2), e.Currency,
		e.Expected.StringFixed(2), e.Currency)
}

// Source is anything that yields transactions in one currency.
type Source interface {
	Transactions() iter.Seq2[model.Transaction, error]
	Currency() string
}

// Summary partitions a ledger into income and expense and tracks its first
// and last transaction.
type Summary struct {
	currency string
	income   []model.Transaction
	expense  []model.Transaction
	initial  model.Transaction
	final    model.Transaction
}

// Summarize drains src once. The initial transaction is the earliest, the
// first one seen among equal dates; the final is the latest, the last one
// seen among equal dates.
func Summarize(src Source) (*Summary, error) {
	s := &Summary{currency: src.Currency()}
	seen := false
	for txn, err := range src.Transactions() {
		if err != nil {
			return nil, err
		}
		if !seen || s.initial.Time().After(txn.Time()) {
			s.initial = txn
		}
		if !seen || !s.final.Time().After(txn.Time()) {
			s.final = txn
		}
		seen = true

		switch {
		case txn.IsIncome():
			s.income = append(s.income, txn)
		case txn.IsExpense():
			s.expense = append(s.expense, txn)
		default:
			return nil, &ReconciliationError{
				Reason:   fmt.Sprintf("transaction neither income nor expense: %s %q", txn.Time().Format("2006-01-02"), txn.Note()),
				Currency: s.currency,
			}
		}
	}
	return s, nil
}

// Validate checks that initial balance plus total movement equals the
// final balance. An empty ledger is valid.
func (s *Summary) Validate() error {
	if s.TransactionCount() == 0 {
		return nil
	}
	initial, total, final := s.InitialAmount(), s.TotalAmount(), s.FinalAmount()
	actual := initial.Add(total)
	if actual.Sub(final).Abs().GreaterThan(tolerance) {
		return &ReconciliationError{
			Reason:   "ledger does not reconcile",
			Initial:  initial,
			Total:    total,
			Expected: final,
			Actual:   actual,
			Currency: s.currency,
		}
	}
	return nil
}

// Currency returns the ledger currency.
func (s *Summary) Currency() string { return s.currency }

// InitialTransaction returns the earliest transaction.
func (s *Summary) InitialTransaction() model.Transaction { return s.initial }

// FinalTransaction returns the latest transaction.
func (s *Summary) FinalTransaction() model.Transaction { return s.final }

// InitialAmount is the balance before the initial transaction.
func (s *Summary) InitialAmount() decimal.Decimal {
	return s.initial.State().Sub(s.initial.Amount())
}

// FinalAmount is the balance after the final transaction.
func (s *Summary) FinalAmount() decimal.Decimal { return s.final.State() }

// TotalAmount is income minus expense.
func (s *Summary) TotalAmount() decimal.Decimal {
	return s.IncomeAmount().Sub(s.ExpenseAmount())
}

// IncomeAmount sums all income.
func (s *Summary) IncomeAmount() decimal.Decimal { return sum(s.income, model.Transaction.Income) }

// ExpenseAmount sums all expenses as a positive number.
func (s *Summary) ExpenseAmount() decimal.Decimal { return sum(s.expense, model.Transaction.Expense) }

func (s *Summary) TransactionCount() int { return len(s.income) + len(s.expense) }
func (s *Summary) IncomeCount() int      { return len(s.income) }
func (s *Summary) ExpenseCount() int     { return len(s.expense) }

func sum(txns []model.Transaction, f func(model.Transaction) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txns {
		total = total.Add(f(t))
	}
	return total
}
