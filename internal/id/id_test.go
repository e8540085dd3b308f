package id

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestKey(t *testing.T) {
	got := Key(day, "EUR", dec("1500.00"), dec("2500.50"), "SALARY MARCH")
	assert.Equal(t, "2024-03-01_EUR_1500_2500.5_SALARY MARCH", got)
}

func TestKey_EmptyNote(t *testing.T) {
	got := Key(day, "HRK", dec("-10"), dec("90"), "")
	assert.Equal(t, "2024-03-01_HRK_-10_90_", got)
}

func TestTransaction_Deterministic(t *testing.T) {
	a := Transaction(day, "EUR", dec("1500.00"), dec("2500"), "note")
	b := Transaction(day.Add(13*time.Hour), "EUR", dec("1500"), dec("2500.000"), "note")
	assert.Equal(t, a, b, "time of day and trailing zeros must not matter")
	assert.True(t, Valid(a))
}

func TestTransaction_KnownValue(t *testing.T) {
	// md5("2024-03-01_EUR_1500_2500_note")
	got := Transaction(day, "EUR", dec("1500"), dec("2500"), "note")
	require.Len(t, got, 32)
	assert.Equal(t, "8915d5990e7518a87d9ba1f75b6c268b", got)
}

func TestTransaction_FieldSensitivity(t *testing.T) {
	base := Transaction(day, "EUR", dec("10"), dec("100"), "coffee")
	variants := []string{
		Transaction(day.AddDate(0, 0, 1), "EUR", dec("10"), dec("100"), "coffee"),
		Transaction(day, "USD", dec("10"), dec("100"), "coffee"),
		Transaction(day, "EUR", dec("-10"), dec("100"), "coffee"),
		Transaction(day, "EUR", dec("10"), dec("101"), "coffee"),
		Transaction(day, "EUR", dec("10"), dec("100"), "tea"),
	}
	seen := map[string]bool{base: true}
	for i, v := range variants {
		assert.False(t, seen[v], "variant %d collides", i)
		seen[v] = true
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"d41d8cd98f00b204e9800998ecf8427e", true},
		{"D41D8CD98F00B204E9800998ECF8427E", false},
		{"d41d8cd98f00b204", false},
		{"", false},
		{"zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.in), "Valid(%q)", tt.in)
	}
}
