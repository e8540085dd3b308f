// Package notify delivers batches of new transactions to their recipients.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/transmailifier/transmailifier/internal/model"
)

// Notifier sends one notification covering txns.
type Notifier interface {
	Notify(ctx context.Context, txns []model.Transaction, subject string, recipients []string) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, txns []model.Transaction, subject string, recipients []string) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, txns []model.Transaction, subject string, recipients []string) error {
	return f(ctx, txns, subject, recipients)
}

// ErrNoRecipients is returned when a ledger has no notification addresses.
var ErrNoRecipients = errors.New("no recipients")

// NotificationError reports a notification that was not delivered.
type NotificationError struct {
	Recipients []string
	Err        error
}

func (e *NotificationError) Error() string {
	if len(e.Recipients) == 0 {
		return fmt.Sprintf("notification failed: %v", e.Err)
	}
	return fmt.Sprintf("notifying %s: %v", strings.Join(e.Recipients, ", "), e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
