package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transmailifier/transmailifier/internal/model"
)

func txns(n int) []model.Transaction {
	out := make([]model.Transaction, n)
	for i := range out {
		note := strings.Repeat("x", i+1)
		out[i] = model.NewTransaction(model.TransactionParams{
			Amount:   decimal.NewFromInt(int64(-i - 1)),
			State:    decimal.NewFromInt(100),
			Currency: "EUR",
			Time:     time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC),
			Note:     &note,
		})
	}
	return out
}

func TestRenderTransactions_Limit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTransactions(&buf, txns(12), previewLimit))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 12, "header + 5 + separator + 5")
	assert.Contains(t, lines[1], "2024-01-01")
	assert.Contains(t, lines[5], "2024-01-05")
	assert.True(t, strings.HasPrefix(lines[6], "..."))
	assert.Contains(t, lines[7], "2024-01-08")
	assert.Contains(t, lines[11], "2024-01-12")
	assert.Contains(t, lines[11], "-12.00 EUR")
}

func TestRenderTransactions_All(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTransactions(&buf, txns(12), 0))
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 13)
	assert.NotContains(t, buf.String(), "...")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 40))
	assert.Equal(t, "čćž...", truncate("čćžšđ", 3))
	assert.Equal(t, strings.Repeat("a", 40), truncate(strings.Repeat("a", 40), 40))
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("Y\n\nno\n"), &out, false, true)

	ok, err := p.confirm("First?")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.confirm("Second?")
	require.NoError(t, err)
	assert.False(t, ok, "empty answer defaults to no")

	ok, err = p.confirm("Third?")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "First? [y/N]: Second? [y/N]: Third? [y/N]: ", out.String())

	ok, err = newPrompter(strings.NewReader(""), &out, true, false).confirm("Skip?")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = newPrompter(strings.NewReader("y\n"), &out, false, false).confirm("No tty?")
	assert.ErrorIs(t, err, ErrConfirmationRequired)
}
