package inventory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oomaallah/hotelops/internal/shared"
)

type stockState struct {
	items     map[uuid.UUID]StockItem
	movements []StockMovement
	requests  map[uuid.UUID]StockRequest
}

func (s stockState) clone() stockState {
	return stockState{
		items:     maps.Clone(s.items),
		movements: slices.Clone(s.movements),
		requests:  maps.Clone(s.requests),
	}
}

// memoryRepo is an in-memory RepositoryPort. Transactions run serially on a
// copy of the state that is only kept when fn succeeds.
type memoryRepo struct {
	mu    sync.Mutex
	state stockState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: stockState{
		items:    map[uuid.UUID]StockItem{},
		requests: map[uuid.UUID]StockRequest{},
	}}
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

// tamper overwrites a cached quantity without a movement.
func (m *memoryRepo) tamper(id uuid.UUID, qty float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := m.state.items[id]
	it.CurrentQuantity = qty
	m.state.items[id] = it
}

func (m *memoryRepo) GetItem(ctx context.Context, id uuid.UUID) (StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.state.items[id]
	if !ok {
		return StockItem{}, ErrItemNotFound
	}
	return it, nil
}

func (m *memoryRepo) ListItems(ctx context.Context) ([]StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Collect(maps.Values(m.state.items))
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepo) ListLowStock(ctx context.Context) ([]StockItem, error) {
	items, _ := m.ListItems(ctx)
	return slices.DeleteFunc(items, func(it StockItem) bool { return !it.Low() }), nil
}

func (m *memoryRepo) ListMovements(ctx context.Context, itemID uuid.UUID) ([]StockMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StockMovement
	for _, mv := range m.state.movements {
		if mv.StockItemID == itemID {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetRequest(ctx context.Context, id uuid.UUID) (StockRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.state.requests[id]
	if !ok {
		return StockRequest{}, ErrRequestNotFound
	}
	return req, nil
}

func (m *memoryRepo) ListRequests(ctx context.Context, status RequestStatus) ([]StockRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StockRequest
	for _, req := range m.state.requests {
		if status == "" || req.Status == status {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memoryTx struct {
	s *stockState
}

func (t *memoryTx) InsertItem(ctx context.Context, item StockItem) error {
	t.s.items[item.ID] = item
	return nil
}

func (t *memoryTx) GetItemForUpdate(ctx context.Context, id uuid.UUID) (StockItem, error) {
	it, ok := t.s.items[id]
	if !ok {
		return StockItem{}, ErrItemNotFound
	}
	return it, nil
}

func (t *memoryTx) SetItemQuantity(ctx context.Context, id uuid.UUID, qty float64, at time.Time) error {
	it := t.s.items[id]
	it.CurrentQuantity = qty
	it.UpdatedAt = at
	t.s.items[id] = it
	return nil
}

func (t *memoryTx) InsertMovement(ctx context.Context, mv StockMovement) error {
	t.s.movements = append(t.s.movements, mv)
	return nil
}

func (t *memoryTx) InsertRequest(ctx context.Context, req StockRequest) error {
	t.s.requests[req.ID] = req
	return nil
}

func (t *memoryTx) GetRequest(ctx context.Context, id uuid.UUID) (StockRequest, error) {
	req, ok := t.s.requests[id]
	if !ok {
		return StockRequest{}, ErrRequestNotFound
	}
	return req, nil
}

func (t *memoryTx) DecideRequest(ctx context.Context, req StockRequest, from RequestStatus) error {
	cur, ok := t.s.requests[req.ID]
	if !ok || cur.Status != from {
		return ErrRequestDecided
	}
	t.s.requests[req.ID] = req
	return nil
}

type recordingApprovals struct {
	mu   sync.Mutex
	logs []shared.ApprovalLog
}

func (r *recordingApprovals) Record(ctx context.Context, log shared.ApprovalLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *recordingApprovals) List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []shared.ApprovalLog{}
	for _, l := range r.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *recordingApprovals) actions() []shared.ApprovalAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.ApprovalAction
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}

type recordingHook struct {
	mu    sync.Mutex
	calls []StockRequest
	err   error
}

func (h *recordingHook) HandleDeductionApproved(ctx context.Context, req StockRequest, actor uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, req)
	return h.err
}
