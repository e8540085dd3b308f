package processor

import (
	"bytes"
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

	"github.com/transmailifier/transmailifier/internal/logger"
	"github.com/transmailifier/transmailifier/internal/model"
	"github.com/transmailifier/transmailifier/internal/notify"
	"github.com/transmailifier/transmailifier/internal/storage"
)

type fakeLedger struct {
	txns []model.Transaction
	err  error
}

func (f *fakeLedger) Name() string                      { return "zaba" }
func (f *fakeLedger) Description() string               { return "Zaba statement" }
func (f *fakeLedger) NotificationAddresses() []string   { return []string{"me@example.com"} }
func (f *fakeLedger) All() ([]model.Transaction, error) { return f.txns, f.err }

func newLedger(n int) *fakeLedger {
	l := &fakeLedger{}
	state := decimal.NewFromInt(1000)
	for i := 0; i < n; i++ {
		amount := decimal.NewFromInt(int64(10 * (i + 1)))
		state = state.Add(amount)
		note := fmt.Sprintf("txn %d", i)
		l.txns = append(l.txns, model.NewTransaction(model.TransactionParams{
			Amount:   amount,
			State:    state,
			Currency: "EUR",
			Time:     time.Date(2024, 3, 1+i, 0, 0, 0, 0, time.UTC),
			Note:     &note,
		}))
	}
	return l
}

type recorder struct {
	calls [][]model.Transaction
	err   error
}

func (r *recorder) Notify(_ context.Context, txns []model.Transaction, subject string, recipients []string) error {
	r.calls = append(r.calls, txns)
	return r.err
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "storage.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProcessUnprocessed_Idempotent(t *testing.T) {
	ctx := context.Background()
	l := newLedger(4)
	rec := &recorder{}
	p := New(openStore(t), rec, logger.Nop())

	res, err := p.ProcessUnprocessed(ctx, l, false)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count())
	require.Len(t, rec.calls, 1)
	assert.Len(t, rec.calls[0], 4)

	res, err = p.ProcessUnprocessed(ctx, l, false)
	require.NoError(t, err)
	assert.Zero(t, res.Count())
	assert.Len(t, rec.calls, 1, "nothing new, nothing sent")
}

func TestProcessUnprocessed_NotifierFailureLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	l := newLedger(3)
	store := openStore(t)
	boom := errors.New("connection refused")
	rec := &recorder{err: boom}
	p := New(store, rec, logger.Nop())

	_, err := p.ProcessUnprocessed(ctx, l, false)
	var nerr *notify.NotificationError
	require.ErrorAs(t, err, &nerr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"me@example.com"}, nerr.Recipients)

	for _, txn := range l.txns {
		ok, err := store.IsProcessed(ctx, txn.Identifier())
		require.NoError(t, err)
		assert.False(t, ok)
	}

	rec.err = nil
	res, err := p.ProcessUnprocessed(ctx, l, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count(), "everything is retried")
}

func TestProcessUnprocessed_KeepsNotificationError(t *testing.T) {
	inner := &notify.NotificationError{Recipients: []string{"x@example.com"}, Err: notify.ErrNoRecipients}
	p := New(openStore(t), &recorder{err: inner}, logger.Nop())
	_, err := p.ProcessUnprocessed(context.Background(), newLedger(1), false)
	var nerr *notify.NotificationError
	require.ErrorAs(t, err, &nerr)
	assert.Same(t, inner, nerr)
}

func TestProcessUnprocessed_OnlyNew(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	rec := &recorder{}
	p := New(store, rec, logger.Nop())

	_, err := p.ProcessUnprocessed(ctx, newLedger(2), false)
	require.NoError(t, err)

	res, err := p.ProcessUnprocessed(ctx, newLedger(5), false)
	require.NoError(t, err)
	require.Equal(t, 3, res.Count())
	assert.Equal(t, "txn 2", res.Processed[0].Note())
}

func TestProcessUnprocessed_Reprocess(t *testing.T) {
	ctx := context.Background()
	l := newLedger(2)
	rec := &recorder{}
	p := New(openStore(t), rec, logger.Nop())

	_, err := p.ProcessUnprocessed(ctx, l, false)
	require.NoError(t, err)
	res, err := p.ProcessUnprocessed(ctx, l, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count())
	assert.Len(t, rec.calls, 2)
}

func TestProcessUnprocessed_LedgerError(t *testing.T) {
	rec := &recorder{}
	p := New(openStore(t), rec, logger.Nop())
	_, err := p.ProcessUnprocessed(context.Background(), &fakeLedger{err: errors.New("row 4: invalid date")}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading ledger zaba")
	assert.Empty(t, rec.calls)
}

func TestProcessUnprocessed_StagingFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	store := storage.New(sqlx.NewDb(mockDB, "sqlmock"))

	mock.ExpectQuery("SELECT id FROM transactions").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO transactions").ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	rec := &recorder{}
	_, err = New(store, rec, logger.Nop()).ProcessUnprocessed(context.Background(), newLedger(2), false)
	var serr *storage.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Empty(t, rec.calls, "nothing is sent when staging fails")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessUnprocessed_Logs(t *testing.T) {
	buf := &bytes.Buffer{}
	p := New(openStore(t), &recorder{err: errors.New("boom")}, logger.NewWithWriter(buf))
	_, err := p.ProcessUnprocessed(context.Background(), newLedger(1), false)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"ledger":"zaba"`)
	assert.Contains(t, out, `"message":"filtered"`)
	assert.Contains(t, out, `"message":"abandoned"`)
	assert.NotContains(t, out, `"message":"committed"`)
}

func TestSkipFlow(t *testing.T) {
	ctx := context.Background()
	l := newLedger(5) // 2024-03-01 .. 2024-03-05
	rec := &recorder{}
	p := New(openStore(t), rec, logger.Nop())

	before, err := p.FindUnprocessedBefore(ctx, l, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, before, 2, "strictly before the cutoff")

	res, err := p.MarkProcessed(ctx, before)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count())
	assert.Empty(t, rec.calls)

	res, err = p.ProcessUnprocessed(ctx, l, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count())

	res, err = p.MarkProcessed(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Count())
}

func TestFilterUnprocessed(t *testing.T) {
	ctx := context.Background()
	p := New(openStore(t), &recorder{}, logger.Nop())
	l := newLedger(3)

	left, err := p.FilterUnprocessed(ctx, l, false)
	require.NoError(t, err)
	assert.Len(t, left, 3)

	_, err = p.MarkProcessed(ctx, l.txns[:1])
	require.NoError(t, err)
	left, err = p.FilterUnprocessed(ctx, l, false)
	require.NoError(t, err)
	assert.Len(t, left, 2)
}
