package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transmailifier/transmailifier/internal/model"
)

func txn(i int) model.Transaction {
	note := fmt.Sprintf("txn %d", i)
	return model.NewTransaction(model.TransactionParams{
		Amount:   decimal.NewFromInt(int64(i + 1)),
		State:    decimal.NewFromInt(int64(1000 + i)),
		Currency: "EUR",
		Time:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i%28),
		Note:     &note,
	})
}

func txns(n int) []model.Transaction {
	out := make([]model.Transaction, n)
	for i := range out {
		out[i] = txn(i)
	}
	return out
}

func openStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "var", "nested", "storage.sqlite")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesSchemaIdempotently(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "var", "storage.sqlite")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	ok, err := s.IsProcessed(ctx, txn(0).Identifier())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkProcessed_CommitMakesVisible(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	batch := txns(3)

	p, err := s.MarkProcessed(ctx, batch)
	require.NoError(t, err)
	defer p.Rollback()
	assert.Equal(t, 3, p.Count())

	ok, err := s.IsProcessed(ctx, batch[0].Identifier())
	require.NoError(t, err)
	assert.False(t, ok, "staged rows are invisible before commit")

	require.NoError(t, p.Commit())
	for _, tx := range batch {
		ok, err := s.IsProcessed(ctx, tx.Identifier())
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.NoError(t, p.Rollback(), "rollback after commit is a no-op")
}

func TestMarkProcessed_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	p, err := s.MarkProcessed(ctx, txns(2))
	require.NoError(t, err)
	require.NoError(t, p.Rollback())
	require.NoError(t, p.Rollback())

	left, err := s.FilterUnprocessed(ctx, txns(2), false)
	require.NoError(t, err)
	assert.Len(t, left, 2)

	var storageErr *StorageError
	require.ErrorAs(t, p.Commit(), &storageErr)
}

func TestMarkProcessed_DuplicatesAndReprocess(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	dup := []model.Transaction{txn(1), txn(1), txn(2)}

	p, err := s.MarkProcessed(ctx, dup)
	require.NoError(t, err, "duplicates within a batch collapse")
	require.NoError(t, p.Commit())

	p, err = s.MarkProcessed(ctx, dup)
	require.NoError(t, err, "remarking processed rows is allowed")
	require.NoError(t, p.Commit())

	var n int
	require.NoError(t, s.db.Get(&n, `SELECT COUNT(*) FROM transactions`))
	assert.Equal(t, 2, n)
}

func TestMarkProcessed_Timestamps(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 4, 1, 12, 30, 0, 0, time.UTC)
	s, err := Open(ctx, filepath.Join(t.TempDir(), "s.sqlite"), WithClock(func() time.Time { return at }))
	require.NoError(t, err)
	defer s.Close()

	p, err := s.MarkProcessed(ctx, txns(1))
	require.NoError(t, err)
	require.NoError(t, p.Commit())

	var row struct {
		CreatedAt   time.Time  `db:"created_at"`
		ProcessedAt *time.Time `db:"processed_at"`
	}
	require.NoError(t, s.db.Get(&row, `SELECT created_at, processed_at FROM transactions`))
	assert.True(t, row.CreatedAt.Equal(at))
	require.NotNil(t, row.ProcessedAt)
	assert.True(t, row.ProcessedAt.Equal(at))
}

func TestFilterUnprocessed(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	all := txns(1200)

	var done []model.Transaction
	for i, tx := range all {
		if i%2 == 0 {
			done = append(done, tx)
		}
	}
	p, err := s.MarkProcessed(ctx, done)
	require.NoError(t, err)
	require.NoError(t, p.Commit())

	left, err := s.FilterUnprocessed(ctx, all, false)
	require.NoError(t, err)
	require.Len(t, left, 600)
	assert.Equal(t, all[1].Identifier(), left[0].Identifier(), "input order is kept")
	assert.Equal(t, all[1199].Identifier(), left[599].Identifier())

	everything, err := s.FilterUnprocessed(ctx, all, true)
	require.NoError(t, err)
	assert.Len(t, everything, 1200)

	none, err := s.FilterUnprocessed(ctx, nil, false)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFilterUnprocessed_IgnoresNullProcessedAt(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	tx := txn(7)
	_, err := s.db.Exec(`INSERT INTO transactions (id, created_at, processed_at) VALUES (?, ?, NULL)`,
		tx.Identifier(), time.Now())
	require.NoError(t, err)

	ok, err := s.IsProcessed(ctx, tx.Identifier())
	require.NoError(t, err)
	assert.False(t, ok)

	left, err := s.FilterUnprocessed(ctx, []model.Transaction{tx}, false)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return New(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func TestMarkProcessed_MidBatchFailureRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	batch := txns(3)
	boom := errors.New("disk I/O error")

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO transactions")
	prep.ExpectExec().
		WithArgs(batch[0].Identifier(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs(batch[1].Identifier(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(boom)
	mock.ExpectRollback()

	p, err := s.MarkProcessed(context.Background(), batch)
	assert.Nil(t, p)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "mark processed", storageErr.Op)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessed_BeginFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	_, err := s.MarkProcessed(context.Background(), txns(1))
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "begin", storageErr.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPending_CommitFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO transactions").
		ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("constraint failed"))

	p, err := s.MarkProcessed(context.Background(), txns(1))
	require.NoError(t, err)
	err = p.Commit()
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "commit", storageErr.Op)
	assert.NoError(t, p.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsProcessed_QueryFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("no such table: transactions"))

	_, err := s.IsProcessed(context.Background(), "x")
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Contains(t, err.Error(), "no such table")
}
