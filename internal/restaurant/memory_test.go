package restaurant

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oomaallah/hotelops/internal/catalog"
	"github.com/oomaallah/hotelops/internal/shared"
)

type memoryState struct {
	tables   map[uuid.UUID]Table
	orders   map[uuid.UUID]Order
	items    map[uuid.UUID]OrderItem
	tickets  map[uuid.UUID]Ticket
	bills    map[uuid.UUID]Bill
	payments map[uuid.UUID]Payment
}

func (s memoryState) clone() memoryState {
	return memoryState{
		tables:   maps.Clone(s.tables),
		orders:   maps.Clone(s.orders),
		items:    maps.Clone(s.items),
		tickets:  maps.Clone(s.tickets),
		bills:    maps.Clone(s.bills),
		payments: maps.Clone(s.payments),
	}
}

// memoryRepo is an in-memory Repository. Transactions run serially on a copy
// of the state that is only kept when fn succeeds.
type memoryRepo struct {
	mu    sync.Mutex
	state memoryState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: memoryState{
		tables:   map[uuid.UUID]Table{},
		orders:   map[uuid.UUID]Order{},
		items:    map[uuid.UUID]OrderItem{},
		tickets:  map[uuid.UUID]Ticket{},
		bills:    map[uuid.UUID]Bill{},
		payments: map[uuid.UUID]Payment{},
	}}
}

func (m *memoryRepo) addTable(name string) Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := Table{ID: uuid.New(), Name: name, Capacity: 4, Status: TableAvailable}
	m.state.tables[t.ID] = t
	return t
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(ctx, &memoryTx{s: &work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memoryRepo) view() *memoryTx {
	s := m.state.clone()
	return &memoryTx{s: &s}
}

func (m *memoryRepo) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().GetOrder(ctx, id)
}

func (m *memoryRepo) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.state.orders {
		if filter.Status == "" || o.Status == filter.Status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepo) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().ListOrderItems(ctx, orderID)
}

func (m *memoryRepo) ListOrderTickets(ctx context.Context, orderID uuid.UUID) ([]Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Ticket
	for _, t := range m.state.tickets {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	sortTickets(out)
	return out, nil
}

func (m *memoryRepo) ListStationTickets(ctx context.Context, station Station, statuses []TicketStatus) ([]Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Ticket
	for _, t := range m.state.tickets {
		if t.Station == station && slices.Contains(statuses, t.Status) {
			out = append(out, t)
		}
	}
	sortTickets(out)
	return out, nil
}

func (m *memoryRepo) ListTables(ctx context.Context) ([]Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Collect(maps.Values(m.state.tables))
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepo) ActiveBillForOrder(ctx context.Context, orderID uuid.UUID) (*Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().ActiveBillForOrder(ctx, orderID)
}

func (m *memoryRepo) GetBill(ctx context.Context, id uuid.UUID) (Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().GetBillForUpdate(ctx, id)
}

func (m *memoryRepo) ListBills(ctx context.Context, filter BillFilter) ([]Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Bill
	for _, b := range m.state.bills {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.From != nil && b.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !b.CreatedAt.Before(*filter.To) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *memoryRepo) ListPayments(ctx context.Context, billID uuid.UUID) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payment
	for _, p := range m.state.payments {
		if p.BillID == billID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepo) ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payment
	for _, p := range m.state.payments {
		if !p.CreatedAt.Before(from) && p.CreatedAt.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func sortTickets(ts []Ticket) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].Station < ts[j].Station
		}
		return ts[i].CreatedAt.Before(ts[j].CreatedAt)
	})
}

type memoryTx struct {
	s *memoryState
}

func (t *memoryTx) GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error) {
	tb, ok := t.s.tables[id]
	if !ok {
		return Table{}, ErrTableNotFound
	}
	return tb, nil
}

func (t *memoryTx) SetTableStatus(ctx context.Context, id uuid.UUID, status TableStatus) error {
	tb := t.s.tables[id]
	tb.Status = status
	t.s.tables[id] = tb
	return nil
}

func (t *memoryTx) FindOpenOrderForTable(ctx context.Context, tableID uuid.UUID) (*Order, error) {
	for _, o := range t.s.orders {
		if o.Status == OrderOpen && o.TableID != nil && *o.TableID == tableID {
			return &o, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) InsertOrder(ctx context.Context, order Order) error {
	if order.TableID != nil {
		if existing, _ := t.FindOpenOrderForTable(ctx, *order.TableID); existing != nil {
			return ErrTableOccupied
		}
	}
	t.s.orders[order.ID] = order
	return nil
}

func (t *memoryTx) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (t *memoryTx) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *memoryTx) UpdateOrderTotals(ctx context.Context, order Order) error {
	o := t.s.orders[order.ID]
	o.Subtotal = order.Subtotal
	o.TaxAmount = order.TaxAmount
	o.TourismLevy = order.TourismLevy
	o.ServiceCharge = order.ServiceCharge
	o.DiscountAmount = order.DiscountAmount
	o.TotalAmount = order.TotalAmount
	o.UpdatedAt = order.UpdatedAt
	t.s.orders[order.ID] = o
	return nil
}

func (t *memoryTx) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus, closedAt *time.Time, at time.Time) error {
	o := t.s.orders[id]
	o.Status = status
	o.ClosedAt = closedAt
	o.UpdatedAt = at
	t.s.orders[id] = o
	return nil
}

func (t *memoryTx) InsertItem(ctx context.Context, item OrderItem) error {
	t.s.items[item.ID] = item
	return nil
}

func (t *memoryTx) GetItemForUpdate(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	it, ok := t.s.items[id]
	if !ok {
		return OrderItem{}, ErrItemNotFound
	}
	return it, nil
}

func (t *memoryTx) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	var out []OrderItem
	for _, it := range t.s.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memoryTx) UpdateItemQuantity(ctx context.Context, id uuid.UUID, qty int, at time.Time) error {
	it := t.s.items[id]
	it.Quantity = qty
	it.UpdatedAt = at
	t.s.items[id] = it
	return nil
}

func (t *memoryTx) UpdateItemStatus(ctx context.Context, id uuid.UUID, status ItemStatus, at time.Time) error {
	it := t.s.items[id]
	it.Status = status
	it.UpdatedAt = at
	t.s.items[id] = it
	return nil
}

func (t *memoryTx) DeleteItem(ctx context.Context, id uuid.UUID) error {
	delete(t.s.items, id)
	return nil
}

func (t *memoryTx) MarkItemsSent(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	var n int64
	for _, id := range ids {
		it, ok := t.s.items[id]
		if !ok || it.Status != ItemNew {
			continue
		}
		it.Status = ItemSent
		it.UpdatedAt = at
		t.s.items[id] = it
		n++
	}
	return n, nil
}

func (t *memoryTx) InsertTicket(ctx context.Context, ticket Ticket) error {
	t.s.tickets[ticket.ID] = ticket
	return nil
}

func (t *memoryTx) GetTicketForUpdate(ctx context.Context, id uuid.UUID) (Ticket, error) {
	tk, ok := t.s.tickets[id]
	if !ok {
		return Ticket{}, ErrTicketNotFound
	}
	return tk, nil
}

func (t *memoryTx) UpdateTicketStatus(ctx context.Context, id uuid.UUID, status TicketStatus, at time.Time) error {
	tk := t.s.tickets[id]
	tk.Status = status
	tk.UpdatedAt = at
	t.s.tickets[id] = tk
	return nil
}

func (t *memoryTx) ActiveBillForOrder(ctx context.Context, orderID uuid.UUID) (*Bill, error) {
	for _, b := range t.s.bills {
		if b.OrderID == orderID && b.Status != BillVoid {
			return &b, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) InsertBill(ctx context.Context, bill Bill) error {
	if existing, _ := t.ActiveBillForOrder(ctx, bill.OrderID); existing != nil {
		return ErrBillExists
	}
	t.s.bills[bill.ID] = bill
	return nil
}

func (t *memoryTx) GetBillForUpdate(ctx context.Context, id uuid.UUID) (Bill, error) {
	b, ok := t.s.bills[id]
	if !ok {
		return Bill{}, ErrBillNotFound
	}
	return b, nil
}

func (t *memoryTx) UpdateBillStatus(ctx context.Context, id uuid.UUID, status BillStatus, paidAt *time.Time, at time.Time) error {
	b := t.s.bills[id]
	b.Status = status
	if paidAt != nil {
		b.PaidAt = paidAt
	}
	b.UpdatedAt = at
	t.s.bills[id] = b
	return nil
}

func (t *memoryTx) InsertPayment(ctx context.Context, payment Payment) error {
	t.s.payments[payment.ID] = payment
	return nil
}

func (t *memoryTx) SumPayments(ctx context.Context, billID uuid.UUID) (float64, error) {
	var total float64
	for _, p := range t.s.payments {
		if p.BillID == billID {
			total += p.Amount
		}
	}
	return total, nil
}

type stubMenu map[uuid.UUID]catalog.MenuItem

func (m stubMenu) MenuItem(ctx context.Context, id uuid.UUID) (catalog.MenuItem, error) {
	item, ok := m[id]
	if !ok {
		return catalog.MenuItem{}, fmt.Errorf("%w: menu item %s", shared.ErrNotFound, id)
	}
	return item, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[module+":"+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+":"+key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, module+":"+key)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []StationEvent
}

func (n *recordingNotifier) Publish(ctx context.Context, evt StationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return nil
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}
