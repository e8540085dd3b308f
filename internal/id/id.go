package id

import (
	"crypto/md5" //nolint:gosec // identifier, not a security boundary
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateFormat is the day-resolution date used in identifiers.
const dateFormat = "2006-01-02"

// Transaction returns the dedup identifier for a transaction:
// md5("YYYY-MM-DD_currency_amount_state_note") as 32 lowercase hex chars.
//
// Amounts render in shortest form ("1500", "-10.5"), so 1500.00 and 1500
// hash the same.
func Transaction(date time.Time, currency string, amount, state decimal.Decimal, note string) string {
	sum := md5.Sum([]byte(Key(date, currency, amount, state, note))) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// Key returns the plain-text key that Transaction hashes.
func Key(date time.Time, currency string, amount, state decimal.Decimal, note string) string {
	return strings.Join([]string{
		date.Format(dateFormat),
		currency,
		amount.String(),
		state.String(),
		note,
	}, "_")
}

// Valid reports whether s looks like an identifier produced by Transaction.
func Valid(s string) bool {
	if len(s) != hex.EncodedLen(md5.Size) {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
