// Package storage records which transactions have been processed.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/transmailifier/transmailifier/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id CHAR(32) PRIMARY KEY,
	created_at DATETIME NOT NULL,
	processed_at DATETIME NULL
)`

const upsertProcessed = `
INSERT INTO transactions (id, created_at, processed_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET processed_at = excluded.processed_at`

// queryBatch bounds the number of ids bound into one IN clause.
const queryBatch = 500

// StorageError wraps a failed store operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Store is a SQLite-backed set of processed transaction identifiers.
// It expects a single writing process.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
	log zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Store) { s.log = l } }

// WithClock sets the time source used for created_at and processed_at.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// Open opens (creating if needed) the SQLite database at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	s := New(db, opts...)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing handle. The schema is not created; see Migrate.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now, log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Migrate creates the transactions table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return &StorageError{Op: "migrate", Err: err}
	}
	s.log.Debug().Msg("storage schema ready")
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// IsProcessed reports whether id has been committed as processed.
func (s *Store) IsProcessed(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM transactions WHERE id = ? AND processed_at IS NOT NULL`, id)
	if err != nil {
		return false, &StorageError{Op: "check processed", Err: err}
	}
	return n > 0, nil
}

// FilterUnprocessed returns the transactions not yet processed, in input
// order. With reprocess set every transaction is returned.
func (s *Store) FilterUnprocessed(ctx context.Context, txns []model.Transaction, reprocess bool) ([]model.Transaction, error) {
	if reprocess || len(txns) == 0 {
		return txns, nil
	}

	processed := make(map[string]bool)
	for start := 0; start < len(txns); start += queryBatch {
		end := min(start+queryBatch, len(txns))
		ids := make([]string, 0, end-start)
		for _, t := range txns[start:end] {
			ids = append(ids, t.Identifier())
		}
		found, err := s.processedAmong(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, id := range found {
			processed[id] = true
		}
	}

	var out []model.Transaction
	for _, t := range txns {
		if !processed[t.Identifier()] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) processedAmong(ctx context.Context, ids []string) ([]string, error) {
	query, args, err := sqlx.In(`SELECT id FROM transactions WHERE processed_at IS NOT NULL AND id IN (?)`, ids)
	if err != nil {
		return nil, &StorageError{Op: "filter processed", Err: err}
	}
	var found []string
	if err := s.db.SelectContext(ctx, &found, s.db.Rebind(query), args...); err != nil {
		return nil, &StorageError{Op: "filter processed", Err: err}
	}
	return found, nil
}

// MarkProcessed stages txns as processed inside an open database
// transaction. Nothing is visible until Pending.Commit. Any failure rolls
// the whole batch back.
func (s *Store) MarkProcessed(ctx context.Context, txns []model.Transaction) (*Pending, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, &StorageError{Op: "begin", Err: err}
	}

	fail := func(op string, err error) (*Pending, error) {
		tx.Rollback()
		return nil, &StorageError{Op: op, Err: err}
	}

	stmt, err := tx.PreparexContext(ctx, upsertProcessed)
	if err != nil {
		return fail("prepare", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	for _, t := range txns {
		if _, err := stmt.ExecContext(ctx, t.Identifier(), now, now); err != nil {
			return fail("mark processed", err)
		}
	}
	s.log.Debug().Int("count", len(txns)).Msg("transactions staged")
	return &Pending{tx: tx, count: len(txns)}, nil
}

// Pending is a staged batch. Rollback is safe to defer: it does nothing
// after Commit or a previous Rollback.
type Pending struct {
	tx    *sqlx.Tx
	count int
	done  bool
}

var errPendingDone = errors.New("pending batch already finished")

// Count returns the number of staged transactions.
func (p *Pending) Count() int { return p.count }

// Commit makes the staged rows visible.
func (p *Pending) Commit() error {
	if p.done {
		return &StorageError{Op: "commit", Err: errPendingDone}
	}
	p.done = true
	if err := p.tx.Commit(); err != nil {
		return &StorageError{Op: "commit", Err: err}
	}
	return nil
}

// Rollback discards the staged rows.
func (p *Pending) Rollback() error {
	if p.done {
		return nil
	}
	p.done = true
	if err := p.tx.Rollback(); err != nil {
		return &StorageError{Op: "rollback", Err: err}
	}
	return nil
}
