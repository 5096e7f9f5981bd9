package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oomaallah/hotelops/internal/platform/db"
	"github.com/oomaallah/hotelops/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if err != nil && db.IsSerializationFailure(err) {
		return fmt.Errorf("%w: concurrent stock update, retry the request", shared.ErrConflict)
	}
	return err
}

const itemColumns = `id, name, unit, category, current_quantity, minimum_quantity, unit_cost, created_at, updated_at`

const movementColumns = `id, stock_item_id, movement_type, quantity, reference_table, reference_id, notes, created_by, created_at`

const requestColumns = `id, stock_item_id, request_type, quantity_requested, quantity_applied, reason, urgency, status,
requested_by, approved_by, approved_at, approval_notes, posted_journal_entry_id, created_at, updated_at`

func scanItem(row pgx.Row) (StockItem, error) {
	var it StockItem
	err := row.Scan(&it.ID, &it.Name, &it.Unit, &it.Category, &it.CurrentQuantity, &it.MinimumQuantity,
		&it.UnitCost, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockItem{}, ErrItemNotFound
	}
	return it, err
}

func scanMovement(row pgx.Row) (StockMovement, error) {
	var mv StockMovement
	var typ string
	err := row.Scan(&mv.ID, &mv.StockItemID, &typ, &mv.Quantity, &mv.ReferenceTable, &mv.ReferenceID,
		&mv.Notes, &mv.CreatedBy, &mv.CreatedAt)
	mv.Type = MovementType(typ)
	return mv, err
}

func scanRequest(row pgx.Row) (StockRequest, error) {
	var req StockRequest
	var typ, urgency, status string
	err := row.Scan(&req.ID, &req.StockItemID, &typ, &req.QuantityRequested, &req.QuantityApplied, &req.Reason,
		&urgency, &status, &req.RequestedBy, &req.ApprovedBy, &req.ApprovedAt, &req.ApprovalNotes,
		&req.PostedJournalEntryID, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockRequest{}, ErrRequestNotFound
	}
	req.Type = RequestType(typ)
	req.Urgency = Urgency(urgency)
	req.Status = RequestStatus(status)
	return req, err
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetItem loads one stock item.
func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (StockItem, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE id=$1`, id))
}

// ListItems returns stock items ordered by name.
func (r *Repository) ListItems(ctx context.Context) ([]StockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM stock_items ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanItem)
}

// ListLowStock returns items at or below their minimum quantity.
func (r *Repository) ListLowStock(ctx context.Context) ([]StockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM stock_items
WHERE current_quantity <= minimum_quantity ORDER BY current_quantity - minimum_quantity, name`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanItem)
}

// ListMovements returns movements of an item in booking order.
func (r *Repository) ListMovements(ctx context.Context, itemID uuid.UUID) ([]StockMovement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM stock_movements
WHERE stock_item_id=$1 ORDER BY created_at, id`, itemID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMovement)
}

// GetRequest loads one stock request.
func (r *Repository) GetRequest(ctx context.Context, id uuid.UUID) (StockRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM stock_requests WHERE id=$1`, id))
}

// ListRequests returns requests, newest first.
func (r *Repository) ListRequests(ctx context.Context, status RequestStatus) ([]StockRequest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM stock_requests
WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT 500`, string(status))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRequest)
}

func (t *txRepository) InsertItem(ctx context.Context, it StockItem) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO stock_items (`+itemColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		it.ID, it.Name, it.Unit, it.Category, it.CurrentQuantity, it.MinimumQuantity, it.UnitCost, it.CreatedAt, it.UpdatedAt)
	return err
}

func (t *txRepository) GetItemForUpdate(ctx context.Context, id uuid.UUID) (StockItem, error) {
	return scanItem(t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepository) SetItemQuantity(ctx context.Context, id uuid.UUID, qty float64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_items SET current_quantity=$2, updated_at=$3 WHERE id=$1`, id, qty, at)
	return err
}

func (t *txRepository) InsertMovement(ctx context.Context, mv StockMovement) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO stock_movements (`+movementColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		mv.ID, mv.StockItemID, string(mv.Type), mv.Quantity, mv.ReferenceTable, mv.ReferenceID, mv.Notes, mv.CreatedBy, mv.CreatedAt)
	return err
}

func (t *txRepository) InsertRequest(ctx context.Context, req StockRequest) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO stock_requests (id, stock_item_id, request_type, quantity_requested, reason,
urgency, status, requested_by, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		req.ID, req.StockItemID, string(req.Type), req.QuantityRequested, req.Reason, string(req.Urgency),
		string(req.Status), req.RequestedBy, req.CreatedAt, req.UpdatedAt)
	return err
}

func (t *txRepository) GetRequest(ctx context.Context, id uuid.UUID) (StockRequest, error) {
	return scanRequest(t.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM stock_requests WHERE id=$1`, id))
}

func (t *txRepository) DecideRequest(ctx context.Context, req StockRequest, from RequestStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE stock_requests SET status=$3, quantity_applied=$4, approved_by=$5,
approved_at=$6, approval_notes=$7, updated_at=$8 WHERE id=$1 AND status=$2`,
		req.ID, string(from), string(req.Status), req.QuantityApplied, req.ApprovedBy, req.ApprovedAt,
		req.ApprovalNotes, req.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestDecided
	}
	return nil
}
