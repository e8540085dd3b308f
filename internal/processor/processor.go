// Package processor sends notifications for new transactions and records
// them as processed.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/transmailifier/transmailifier/internal/model"
	"github.com/transmailifier/transmailifier/internal/notify"
	"github.com/transmailifier/transmailifier/internal/storage"
)

// Ledger is the part of ledger.Ledger the processor reads.
type Ledger interface {
	Name() string
	All() ([]model.Transaction, error)
	Description() string
	NotificationAddresses() []string
}

// Store is the dedup store.
type Store interface {
	FilterUnprocessed(ctx context.Context, txns []model.Transaction, reprocess bool) ([]model.Transaction, error)
	MarkProcessed(ctx context.Context, txns []model.Transaction) (*storage.Pending, error)
}

// Result lists the transactions a run handled.
type Result struct {
	Processed []model.Transaction
}

// Count returns the number of handled transactions.
func (r Result) Count() int { return len(r.Processed) }

// Processor ties a store and a notifier together.
type Processor struct {
	store    Store
	notifier notify.Notifier
	log      zerolog.Logger
}

// New creates a Processor.
func New(store Store, notifier notify.Notifier, log zerolog.Logger) *Processor {
	return &Processor{store: store, notifier: notifier, log: log}
}

// ProcessUnprocessed notifies about every transaction of l not yet
// processed, then marks them processed. Transactions are marked only when
// the notification succeeds; on any failure the store is left unchanged.
func (p *Processor) ProcessUnprocessed(ctx context.Context, l Ledger, reprocess bool) (Result, error) {
	log := p.log.With().Str("ledger", l.Name()).Logger()

	unprocessed, err := p.FilterUnprocessed(ctx, l, reprocess)
	if err != nil {
		return Result{}, err
	}
	log.Info().Int("count", len(unprocessed)).Bool("reprocess", reprocess).Msg("filtered")
	if len(unprocessed) == 0 {
		return Result{}, nil
	}

	pending, err := p.store.MarkProcessed(ctx, unprocessed)
	if err != nil {
		return Result{}, fmt.Errorf("staging transactions: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			pending.Rollback()
			log.Warn().Int("count", len(unprocessed)).Msg("abandoned")
		}
	}()
	log.Debug().Int("count", pending.Count()).Msg("staged")

	recipients := l.NotificationAddresses()
	if err := p.notifier.Notify(ctx, unprocessed, l.Description(), recipients); err != nil {
		var nerr *notify.NotificationError
		if !errors.As(err, &nerr) {
			err = &notify.NotificationError{Recipients: recipients, Err: err}
		}
		return Result{}, err
	}
	log.Info().Strs("recipients", recipients).Int("count", len(unprocessed)).Msg("notified")

	if err := pending.Commit(); err != nil {
		return Result{}, fmt.Errorf("committing transactions: %w", err)
	}
	committed = true
	log.Info().Int("count", len(unprocessed)).Msg("committed")
	return Result{Processed: unprocessed}, nil
}

// FilterUnprocessed returns the transactions of l not yet processed, or all
// of them with reprocess.
func (p *Processor) FilterUnprocessed(ctx context.Context, l Ledger, reprocess bool) ([]model.Transaction, error) {
	txns, err := l.All()
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", l.Name(), err)
	}
	return p.store.FilterUnprocessed(ctx, txns, reprocess)
}

// FindUnprocessedBefore returns unprocessed transactions dated strictly
// before t.
func (p *Processor) FindUnprocessedBefore(ctx context.Context, l Ledger, t time.Time) ([]model.Transaction, error) {
	unprocessed, err := p.FilterUnprocessed(ctx, l, false)
	if err != nil {
		return nil, err
	}
	var before []model.Transaction
	for _, txn := range unprocessed {
		if txn.Time().Before(t) {
			before = append(before, txn)
		}
	}
	return before, nil
}

// MarkProcessed records txns as processed without notifying anyone.
func (p *Processor) MarkProcessed(ctx context.Context, txns []model.Transaction) (Result, error) {
	if len(txns) == 0 {
		return Result{}, nil
	}
	pending, err := p.store.MarkProcessed(ctx, txns)
	if err != nil {
		return Result{}, fmt.Errorf("staging transactions: %w", err)
	}
	defer pending.Rollback()
	if err := pending.Commit(); err != nil {
		return Result{}, fmt.Errorf("committing transactions: %w", err)
	}
	p.log.Info().Int("count", len(txns)).Msg("marked processed without notification")
	return Result{Processed: txns}, nil
}
