package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyClaimTrimsKey(t *testing.T) {
	db := &captureExec{}
	store := NewIdempotencyStore(db)
	require.NoError(t, store.CheckAndInsert(context.Background(), "  pay-1 ", "restaurant.payment"))
	require.Equal(t, "pay-1", db.args[0])
	require.Equal(t, "restaurant.payment", db.args[1])
}

func TestIdempotencyDuplicateIsConflict(t *testing.T) {
	db := &captureExec{err: &pgconn.PgError{Code: "23505"}}
	err := NewIdempotencyStore(db).CheckAndInsert(context.Background(), "pay-1", "restaurant.payment")
	require.ErrorIs(t, err, ErrIdempotencyConflict)
	require.ErrorIs(t, err, ErrConflict)
}

func TestIdempotencyRejectsBadInput(t *testing.T) {
	store := NewIdempotencyStore(&captureExec{})
	require.ErrorIs(t, store.CheckAndInsert(context.Background(), " ", "m"), ErrValidation)
	require.ErrorIs(t, store.CheckAndInsert(context.Background(), "k", ""), ErrValidation)
	_, err := store.Cleanup(context.Background(), 0)
	require.ErrorIs(t, err, ErrValidation)
}

func TestIdempotencyCleanupCutoff(t *testing.T) {
	db := &captureExec{tag: "DELETE 4"}
	store := NewIdempotencyStore(db)
	now := time.Date(2026, 5, 10, 4, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	n, err := store.Cleanup(context.Background(), 72*time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
	require.Equal(t, now.Add(-72*time.Hour), db.args[0])
}

func TestApprovalRecordValidates(t *testing.T) {
	rec := NewApprovalRecorder(nil, nil)
	require.Error(t, rec.Record(context.Background(), ApprovalLog{}))

	rec = NewApprovalRecorder(stubQuerier{&captureExec{}}, nil)
	err := rec.Record(context.Background(), ApprovalLog{Module: "inventory.stock_request"})
	require.ErrorIs(t, err, ErrValidation)
}

type stubQuerier struct {
	*captureExec
}

func (stubQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("query not stubbed")
}
