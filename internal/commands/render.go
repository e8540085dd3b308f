package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/transmailifier/transmailifier/internal/ledger"
	"github.com/transmailifier/transmailifier/internal/model"
)

const (
	previewLimit = 10
	noteWidth    = 40
)

// newTable returns a borderless, left-aligned table writing to w.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	if len(header) > 0 {
		t.SetHeader(header)
	}
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetCenterSeparator("")
	t.SetColumnSeparator("")
	t.SetRowSeparator("")
	t.SetTablePadding("  ")
	t.SetNoWhiteSpace(true)
	return t
}

// renderTransactions prints txns as a table. With a positive limit and more
// rows than it, only the first and last limit/2 rows are shown.
func renderTransactions(w io.Writer, txns []model.Transaction, limit int) error {
	table := newTable(w, "DATE", "AMOUNT", "CATEGORY", "PAYEE", "NOTE")

	row := func(t model.Transaction) {
		category, _ := t.Category()
		payee, _ := t.Payee()
		table.Append([]string{
			t.Time().Format("2006-01-02"),
			money(t.Amount(), t.Currency()),
			category,
			payee,
			truncate(t.Note(), noteWidth),
		})
	}

	if limit > 0 && len(txns) > limit {
		half := limit / 2
		for _, t := range txns[:half] {
			row(t)
		}
		table.Append([]string{"...", "...", "...", "...", "..."})
		for _, t := range txns[len(txns)-half:] {
			row(t)
		}
	} else {
		for _, t := range txns {
			row(t)
		}
	}
	table.Render()
	return nil
}

// renderSummary prints the overall, income and expense sections.
func renderSummary(w io.Writer, s *ledger.Summary) error {
	table := newTable(w)
	cur := s.Currency()

	table.Append([]string{"Overall", "Currency", cur})
	table.Append([]string{"", "Transactions", strconv.Itoa(s.TransactionCount())})
	if s.TransactionCount() > 0 {
		table.Append([]string{"", "From - to", fmt.Sprintf("%s - %s",
			s.InitialTransaction().Time().Format("2006-01-02"),
			s.FinalTransaction().Time().Format("2006-01-02"))})
		table.Append([]string{"", "Initial amount", money(s.InitialAmount(), cur)})
		table.Append([]string{"", "Final amount", money(s.FinalAmount(), cur)})
	}
	table.Append([]string{"", "Amount difference", money(s.TotalAmount(), cur)})
	table.Append([]string{"", "Total amount", money(s.IncomeAmount().Add(s.ExpenseAmount()), cur)})

	table.Append([]string{"Income", "Transactions", strconv.Itoa(s.IncomeCount())})
	table.Append([]string{"", "Total amount", money(s.IncomeAmount(), cur)})

	table.Append([]string{"Expense", "Transactions", strconv.Itoa(s.ExpenseCount())})
	table.Append([]string{"", "Total amount", money(s.ExpenseAmount(), cur)})

	table.Render()
	return nil
}

func money(d decimal.Decimal, currency string) string {
	return d.StringFixed(2) + " " + currency
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
