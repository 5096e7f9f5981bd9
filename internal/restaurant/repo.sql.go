package restaurant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oomaallah/hotelops/internal/platform/db"
	"github.com/oomaallah/hotelops/internal/shared"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository persists restaurant data in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn inside a repeatable-read transaction. Lost races surface
// as conflicts.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if err != nil && db.IsSerializationFailure(err) {
		return fmt.Errorf("%w: concurrent update, retry the request", shared.ErrConflict)
	}
	return err
}

const orderColumns = `id, table_id, status, notes, vat_rate, levy_rate, subtotal, tax_amount, tourism_levy,
service_charge, discount_amount, total_amount, created_by, created_at, updated_at, closed_at`

const itemColumns = `id, order_id, menu_item_id, name, category, station, price, tax_rate, quantity, status, notes, created_at, updated_at`

const ticketColumns = `id, order_id, station, ticket_type, status, items, created_by, created_at, updated_at`

const billColumns = `id, order_id, subtotal, tax_amount, tourism_levy, service_charge, discount_amount, total_amount,
vat_rate, levy_rate, status, paid_at, posted_journal_entry_id, created_by, created_at, updated_at`

const paymentColumns = `id, bill_id, amount, method, received_by, reference, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.TableID, &status, &o.Notes, &o.VATRate, &o.LevyRate, &o.Subtotal, &o.TaxAmount, &o.TourismLevy,
		&o.ServiceCharge, &o.DiscountAmount, &o.TotalAmount, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt, &o.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	o.Status = OrderStatus(status)
	return o, nil
}

func scanItem(row pgx.Row) (OrderItem, error) {
	var it OrderItem
	var station, status string
	err := row.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.Category, &station, &it.Price, &it.TaxRate,
		&it.Quantity, &status, &it.Notes, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderItem{}, ErrItemNotFound
		}
		return OrderItem{}, err
	}
	if it.Station, err = ParseStation(station); err != nil {
		return OrderItem{}, err
	}
	it.Status = ItemStatus(status)
	return it, nil
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	var station, status string
	var items []byte
	err := row.Scan(&t.ID, &t.OrderID, &station, &t.Type, &status, &items, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ticket{}, ErrTicketNotFound
		}
		return Ticket{}, err
	}
	if t.Station, err = ParseStation(station); err != nil {
		return Ticket{}, err
	}
	t.Status = TicketStatus(status)
	if err := json.Unmarshal(items, &t.Items); err != nil {
		return Ticket{}, fmt.Errorf("restaurant: decode ticket items: %w", err)
	}
	return t, nil
}

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	var status string
	err := row.Scan(&b.ID, &b.OrderID, &b.Subtotal, &b.TaxAmount, &b.TourismLevy, &b.ServiceCharge, &b.DiscountAmount,
		&b.TotalAmount, &b.VATRate, &b.LevyRate, &status, &b.PaidAt, &b.PostedJournalEntryID, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, ErrBillNotFound
		}
		return Bill{}, err
	}
	b.Status = BillStatus(status)
	return b, nil
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	var method string
	if err := row.Scan(&p.ID, &p.BillID, &p.Amount, &method, &p.ReceivedBy, &p.Reference, &p.CreatedAt); err != nil {
		return Payment{}, err
	}
	p.Method = PaymentMethod(method)
	return p, nil
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

func getOrder(ctx context.Context, q querier, id uuid.UUID, lock bool) (Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM pos_orders WHERE id=$1`
	if lock {
		sql += ` FOR UPDATE`
	}
	return scanOrder(q.QueryRow(ctx, sql, id))
}

func listOrderItems(ctx context.Context, q querier, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM pos_order_items WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanItem)
}

func activeBillForOrder(ctx context.Context, q querier, orderID uuid.UUID) (*Bill, error) {
	bill, err := scanBill(q.QueryRow(ctx, `SELECT `+billColumns+` FROM pos_bills WHERE order_id=$1 AND status <> 'void'`, orderID))
	if errors.Is(err, ErrBillNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// GetOrder returns an order by id.
func (r *PGRepository) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return getOrder(ctx, r.pool, id, false)
}

// ListOrders lists orders, newest first.
func (r *PGRepository) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM pos_orders
WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT $2`, string(filter.Status), limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOrder)
}

// ListOrderItems lists every item of an order including void ones.
func (r *PGRepository) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	return listOrderItems(ctx, r.pool, orderID)
}

// ListOrderTickets lists the tickets of an order.
func (r *PGRepository) ListOrderTickets(ctx context.Context, orderID uuid.UUID) ([]Ticket, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ticketColumns+` FROM pos_tickets WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTicket)
}

// ListStationTickets lists tickets for a station board, oldest first.
func (r *PGRepository) ListStationTickets(ctx context.Context, station Station, statuses []TicketStatus) ([]Ticket, error) {
	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+ticketColumns+` FROM pos_tickets
WHERE station=$1 AND status = ANY($2) ORDER BY created_at, id`, station.String(), values)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTicket)
}

// ListTables lists dining tables by name.
func (r *PGRepository) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, area, capacity, status FROM pos_tables ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTable)
}

func scanTable(row pgx.Row) (Table, error) {
	var t Table
	var status string
	if err := row.Scan(&t.ID, &t.Name, &t.Area, &t.Capacity, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Table{}, ErrTableNotFound
		}
		return Table{}, err
	}
	t.Status = TableStatus(status)
	return t, nil
}

// ActiveBillForOrder returns the non-void bill of an order, or nil.
func (r *PGRepository) ActiveBillForOrder(ctx context.Context, orderID uuid.UUID) (*Bill, error) {
	return activeBillForOrder(ctx, r.pool, orderID)
}

// GetBill returns a bill by id.
func (r *PGRepository) GetBill(ctx context.Context, id uuid.UUID) (Bill, error) {
	return scanBill(r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM pos_bills WHERE id=$1`, id))
}

// ListBills lists bills by creation date.
func (r *PGRepository) ListBills(ctx context.Context, filter BillFilter) ([]Bill, error) {
	var (
		conds []string
		args  []any
	)
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	sql := `SELECT ` + billColumns + ` FROM pos_bills`
	if len(conds) > 0 {
		sql += ` WHERE ` + strings.Join(conds, " AND ")
	}
	sql += ` ORDER BY created_at`
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBill)
}

// ListPayments lists payments of a bill.
func (r *PGRepository) ListPayments(ctx context.Context, billID uuid.UUID) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM pos_payments WHERE bill_id=$1 ORDER BY created_at, id`, billID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPayment)
}

// ListPaymentsBetween lists payments captured in [from, to).
func (r *PGRepository) ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM pos_payments
WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at, id`, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPayment)
}

func (t *txRepository) GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error) {
	return scanTable(t.tx.QueryRow(ctx, `SELECT id, name, area, capacity, status FROM pos_tables WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepository) SetTableStatus(ctx context.Context, id uuid.UUID, status TableStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE pos_tables SET status=$2 WHERE id=$1`, id, string(status))
	return err
}

func (t *txRepository) FindOpenOrderForTable(ctx context.Context, tableID uuid.UUID) (*Order, error) {
	order, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM pos_orders WHERE table_id=$1 AND status='open'`, tableID))
	if errors.Is(err, ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (t *txRepository) InsertOrder(ctx context.Context, o Order) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO pos_orders (`+orderColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		o.ID, o.TableID, string(o.Status), o.Notes, o.VATRate, o.LevyRate, o.Subtotal, o.TaxAmount, o.TourismLevy,
		o.ServiceCharge, o.DiscountAmount, o.TotalAmount, o.CreatedBy, o.CreatedAt, o.UpdatedAt, o.ClosedAt)
	if db.IsUniqueViolation(err, "uq_pos_orders_open_table") {
		return ErrTableOccupied
	}
	return err
}

func (t *txRepository) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return getOrder(ctx, t.tx, id, false)
}

func (t *txRepository) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

func (t *txRepository) UpdateOrderTotals(ctx context.Context, o Order) error {
	_, err := t.tx.Exec(ctx, `UPDATE pos_orders SET subtotal=$2, tax_amount=$3, tourism_levy=$4, service_charge=$5,
discount_amount=$6, total_amount=$7, updated_at=$8 WHERE id=$1`,
		o.ID, o.Subtotal, o.TaxAmount, o.TourismLevy, o.ServiceCharge, o.DiscountAmount, o.TotalAmount, o.UpdatedAt)
	return err
}

func (t *txRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus, closedAt *time.Time, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE pos_orders SET status=$2, closed_at=$3, updated_at=$4 WHERE id=$1`, id, string(status), closedAt, at)
	return err
}

func (t *txRepository) InsertItem(ctx context.Context, it OrderItem) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO pos_order_items (`+itemColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		it.ID, it.OrderID, it.MenuItemID, it.Name, it.Category, it.Station.String(), it.Price, it.TaxRate,
		it.Quantity, string(it.Status), it.Notes, it.CreatedAt, it.UpdatedAt)
	return err
}

func (t *txRepository) GetItemForUpdate(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	return scanItem(t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM pos_order_items WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepository) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	return listOrderItems(ctx, t.tx, orderID)
}

func (t *txRepository) UpdateItemQuantity(ctx context.Context, id uuid.UUID, qty int, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE pos_order_items SET quantity=$2, updated_at=$3 WHERE id=$1`, id, qty, at)
	return err
}

func (t *txRepository) UpdateItemStatus(ctx context.Context, id uuid.UUID, status ItemStatus, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE pos_order_items SET status=$2, updated_at=$3 WHERE id=$1`, id, string(status), at)
	return err
}

func (t *txRepository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM pos_order_items WHERE id=$1 AND status='new'`, id)
	return err
}

func (t *txRepository) MarkItemsSent(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE pos_order_items SET status='sent', updated_at=$2 WHERE id = ANY($1) AND status='new'`, ids, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepository) InsertTicket(ctx context.Context, tk Ticket) error {
	items, err := json.Marshal(tk.Items)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO pos_tickets (`+ticketColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		tk.ID, tk.OrderID, tk.Station.String(), tk.Type, string(tk.Status), items, tk.CreatedBy, tk.CreatedAt, tk.UpdatedAt)
	return err
}

func (t *txRepository) GetTicketForUpdate(ctx context.Context, id uuid.UUID) (Ticket, error) {
	return scanTicket(t.tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM pos_tickets WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepository) UpdateTicketStatus(ctx context.Context, id uuid.UUID, status TicketStatus, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE pos_tickets SET status=$2, updated_at=$3 WHERE id=$1`, id, string(status), at)
	return err
}

func (t *txRepository) ActiveBillForOrder(ctx context.Context, orderID uuid.UUID) (*Bill, error) {
	return activeBillForOrder(ctx, t.tx, orderID)
}

func (t *txRepository) InsertBill(ctx context.Context, b Bill) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO pos_bills (`+billColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		b.ID, b.OrderID, b.Subtotal, b.TaxAmount, b.TourismLevy, b.ServiceCharge, b.DiscountAmount, b.TotalAmount,
		b.VATRate, b.LevyRate, string(b.Status), b.PaidAt, b.PostedJournalEntryID, b.CreatedBy, b.CreatedAt, b.UpdatedAt)
	if db.IsUniqueViolation(err, "uq_pos_bills_active_order") {
		return ErrBillExists
	}
	return err
}

func (t *txRepository) GetBillForUpdate(ctx context.Context, id uuid.UUID) (Bill, error) {
	return scanBill(t.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM pos_bills WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepository) UpdateBillStatus(ctx context.Context, id uuid.UUID, status BillStatus, paidAt *time.Time, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE pos_bills SET status=$2, paid_at=COALESCE($3, paid_at), updated_at=$4 WHERE id=$1`, id, string(status), paidAt, at)
	return err
}

func (t *txRepository) InsertPayment(ctx context.Context, p Payment) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO pos_payments (`+paymentColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.BillID, p.Amount, string(p.Method), p.ReceivedBy, p.Reference, p.CreatedAt)
	return err
}

func (t *txRepository) SumPayments(ctx context.Context, billID uuid.UUID) (float64, error) {
	var total float64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::float8 FROM pos_payments WHERE bill_id=$1`, billID).Scan(&total)
	return total, err
}
