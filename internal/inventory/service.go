package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oomaallah/hotelops/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id uuid.UUID) (StockItem, error)
	ListItems(ctx context.Context) ([]StockItem, error)
	ListLowStock(ctx context.Context) ([]StockItem, error)
	ListMovements(ctx context.Context, itemID uuid.UUID) ([]StockMovement, error)
	GetRequest(ctx context.Context, id uuid.UUID) (StockRequest, error)
	ListRequests(ctx context.Context, status RequestStatus) ([]StockRequest, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	InsertItem(ctx context.Context, item StockItem) error
	GetItemForUpdate(ctx context.Context, id uuid.UUID) (StockItem, error)
	SetItemQuantity(ctx context.Context, id uuid.UUID, qty float64, at time.Time) error
	InsertMovement(ctx context.Context, mv StockMovement) error
	InsertRequest(ctx context.Context, req StockRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (StockRequest, error)
	// DecideRequest stores req when the stored status still equals from and
	// returns ErrRequestDecided otherwise.
	DecideRequest(ctx context.Context, req StockRequest, from RequestStatus) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort records approval history.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

const approvalModule = "inventory.stock_request"

// DeductionHook receives approved deductions for ledger posting.
type DeductionHook interface {
	HandleDeductionApproved(ctx context.Context, req StockRequest, actor uuid.UUID) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// AutoPost posts approved deductions to the ledger right after approval.
	AutoPost bool
}

// Service coordinates inventory operations.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	approvals ApprovalPort
	hook      DeductionHook
	cfg       ServiceConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service. audit, approvals and hook may be nil.
func NewService(repo RepositoryPort, audit AuditPort, approvals ApprovalPort, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		audit:     audit,
		approvals: approvals,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetDeductionHook installs the ledger hook. The hook depends on the service,
// so it is wired after construction.
func (s *Service) SetDeductionHook(hook DeductionHook) {
	s.hook = hook
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// CreateItem registers a stock item and books its opening balance.
func (s *Service) CreateItem(ctx context.Context, input ItemInput) (StockItem, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Unit) == "" {
		return StockItem{}, fmt.Errorf("%w: name and unit required", shared.ErrValidation)
	}
	if input.InitialQuantity < 0 || input.MinimumQuantity < 0 {
		return StockItem{}, ErrInvalidQuantity
	}
	if input.UnitCost < 0 {
		return StockItem{}, ErrInvalidUnitCost
	}
	if input.ActorID == uuid.Nil {
		return StockItem{}, ErrActorRequired
	}
	now := s.now()
	item := StockItem{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(input.Name),
		Unit:            strings.TrimSpace(input.Unit),
		Category:        input.Category,
		CurrentQuantity: qty(input.InitialQuantity),
		MinimumQuantity: qty(input.MinimumQuantity),
		UnitCost:        decimal.NewFromFloat(input.UnitCost).Round(2).InexactFloat64(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertItem(ctx, item); err != nil {
			return err
		}
		if item.CurrentQuantity == 0 {
			return nil
		}
		return tx.InsertMovement(ctx, StockMovement{
			ID:          uuid.New(),
			StockItemID: item.ID,
			Type:        MovementIn,
			Quantity:    item.CurrentQuantity,
			Notes:       "opening balance",
			CreatedBy:   input.ActorID,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return StockItem{}, err
	}
	s.record(ctx, input.ActorID, "stock_item.create", "stock_item", item.ID, map[string]any{"name": item.Name})
	return item, nil
}

// SubmitRequest files a pending stock request.
func (s *Service) SubmitRequest(ctx context.Context, input RequestInput) (StockRequest, error) {
	if input.Urgency == "" {
		input.Urgency = UrgencyNormal
	}
	if !input.Type.Valid() || !input.Urgency.Valid() {
		return StockRequest{}, ErrInvalidRequest
	}
	if input.Quantity <= 0 {
		return StockRequest{}, ErrInvalidQuantity
	}
	if input.RequestedBy == uuid.Nil {
		return StockRequest{}, ErrActorRequired
	}
	now := s.now()
	req := StockRequest{
		ID:                uuid.New(),
		StockItemID:       input.StockItemID,
		Type:              input.Type,
		QuantityRequested: qty(input.Quantity),
		Reason:            input.Reason,
		Urgency:           input.Urgency,
		Status:            RequestPending,
		RequestedBy:       input.RequestedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetItemForUpdate(ctx, input.StockItemID); err != nil {
			return err
		}
		return tx.InsertRequest(ctx, req)
	})
	if err != nil {
		return StockRequest{}, err
	}
	s.approval(ctx, req.ID, input.RequestedBy, shared.ApprovalSubmit, input.Reason)
	return req, nil
}

// ApproveRequest moves a pending request to approved. Deductions remove stock
// in the same transaction, flooring the item at zero; the out movement keeps
// the full requested quantity.
func (s *Service) ApproveRequest(ctx context.Context, requestID, actor uuid.UUID, notes string) (StockRequest, error) {
	if actor == uuid.Nil {
		return StockRequest{}, ErrActorRequired
	}
	var req StockRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != RequestPending {
			return ErrRequestDecided
		}
		now := s.now()
		req.Status = RequestApproved
		req.ApprovedBy = &actor
		req.ApprovedAt = &now
		req.ApprovalNotes = optional(notes)
		req.UpdatedAt = now
		if req.Type == RequestDeduction {
			item, err := tx.GetItemForUpdate(ctx, req.StockItemID)
			if err != nil {
				return err
			}
			remaining, applied := deduct(item.CurrentQuantity, req.QuantityRequested)
			req.QuantityApplied = applied
			if err := tx.SetItemQuantity(ctx, item.ID, remaining, now); err != nil {
				return err
			}
			ref := ReferenceRequests
			if err := tx.InsertMovement(ctx, StockMovement{
				ID:             uuid.New(),
				StockItemID:    item.ID,
				Type:           MovementOut,
				Quantity:       req.QuantityRequested,
				ReferenceTable: &ref,
				ReferenceID:    &req.ID,
				Notes:          req.Reason,
				CreatedBy:      actor,
				CreatedAt:      now,
			}); err != nil {
				return err
			}
		}
		return tx.DecideRequest(ctx, req, RequestPending)
	})
	if err != nil {
		return StockRequest{}, err
	}
	s.approval(ctx, req.ID, actor, shared.ApprovalApprove, notes)
	s.record(ctx, actor, "stock_request.approve", "stock_request", req.ID, map[string]any{
		"type":      req.Type,
		"requested": req.QuantityRequested,
		"applied":   req.QuantityApplied,
	})
	if req.Type == RequestDeduction && s.cfg.AutoPost && s.hook != nil {
		// The approval is committed; a failed posting is retried through the
		// ledger endpoint.
		if err := s.hook.HandleDeductionApproved(ctx, req, actor); err != nil {
			s.logger.Error("post stock deduction", slog.String("request_id", req.ID.String()), slog.Any("error", err))
		}
	}
	return req, nil
}

// RejectRequest moves a pending request to rejected.
func (s *Service) RejectRequest(ctx context.Context, requestID, actor uuid.UUID, notes string) (StockRequest, error) {
	if actor == uuid.Nil {
		return StockRequest{}, ErrActorRequired
	}
	var req StockRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != RequestPending {
			return ErrRequestDecided
		}
		now := s.now()
		req.Status = RequestRejected
		req.ApprovedBy = &actor
		req.ApprovedAt = &now
		req.ApprovalNotes = optional(notes)
		req.UpdatedAt = now
		return tx.DecideRequest(ctx, req, RequestPending)
	})
	if err != nil {
		return StockRequest{}, err
	}
	s.approval(ctx, req.ID, actor, shared.ApprovalReject, notes)
	return req, nil
}

// ReceiveStock books goods in. A referenced approved replenishment for the
// same item becomes fulfilled.
func (s *Service) ReceiveStock(ctx context.Context, input ReceiveInput) (StockItem, error) {
	if input.Quantity <= 0 {
		return StockItem{}, ErrInvalidQuantity
	}
	if input.ActorID == uuid.Nil {
		return StockItem{}, ErrActorRequired
	}
	var item StockItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		now := s.now()
		mv := StockMovement{
			ID:          uuid.New(),
			StockItemID: item.ID,
			Type:        MovementIn,
			Quantity:    qty(input.Quantity),
			Notes:       input.Notes,
			CreatedBy:   input.ActorID,
			CreatedAt:   now,
		}
		if input.RequestID != nil {
			req, err := tx.GetRequest(ctx, *input.RequestID)
			if err != nil {
				return err
			}
			if req.Status != RequestApproved || req.Type != RequestReplenishment || req.StockItemID != item.ID {
				return ErrRequestNotApproved
			}
			req.Status = RequestFulfilled
			req.QuantityApplied = mv.Quantity
			req.UpdatedAt = now
			if err := tx.DecideRequest(ctx, req, RequestApproved); err != nil {
				return err
			}
			ref := ReferenceRequests
			mv.ReferenceTable = &ref
			mv.ReferenceID = &req.ID
		}
		if err := tx.InsertMovement(ctx, mv); err != nil {
			return err
		}
		item.CurrentQuantity = decimal.NewFromFloat(item.CurrentQuantity).Add(decimal.NewFromFloat(mv.Quantity)).Round(3).InexactFloat64()
		item.UpdatedAt = now
		return tx.SetItemQuantity(ctx, item.ID, item.CurrentQuantity, now)
	})
	if err != nil {
		return StockItem{}, err
	}
	s.record(ctx, input.ActorID, "stock_item.receive", "stock_item", item.ID, map[string]any{"quantity": input.Quantity})
	return item, nil
}

// GetItem returns one stock item.
func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (StockItem, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems returns all stock items.
func (s *Service) ListItems(ctx context.Context) ([]StockItem, error) {
	return s.repo.ListItems(ctx)
}

// LowStock returns items at or below their minimum quantity.
func (s *Service) LowStock(ctx context.Context) ([]StockItem, error) {
	return s.repo.ListLowStock(ctx)
}

// ListMovements returns an item's movements in booking order.
func (s *Service) ListMovements(ctx context.Context, itemID uuid.UUID) ([]StockMovement, error) {
	if _, err := s.repo.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, itemID)
}

// GetRequest returns one stock request.
func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (StockRequest, error) {
	return s.repo.GetRequest(ctx, id)
}

// ListRequests returns requests, optionally narrowed to one status.
func (s *Service) ListRequests(ctx context.Context, status RequestStatus) ([]StockRequest, error) {
	return s.repo.ListRequests(ctx, status)
}

// RequestHistory returns the submit and decision trail of a stock request.
func (s *Service) RequestHistory(ctx context.Context, id uuid.UUID) ([]shared.ApprovalLog, error) {
	if _, err := s.repo.GetRequest(ctx, id); err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return []shared.ApprovalLog{}, nil
	}
	return s.approvals.List(ctx, approvalModule, id)
}

// Reconcile replays every item's movements from zero with the same saturating
// subtract used by approvals and reports items whose cached quantity differs.
func (s *Service) Reconcile(ctx context.Context) ([]Discrepancy, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	var out []Discrepancy
	for _, item := range items {
		movements, err := s.repo.ListMovements(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("inventory: movements for %s: %w", item.ID, err)
		}
		replayed := Replay(movements)
		if !decimal.NewFromFloat(replayed).Equal(decimal.NewFromFloat(item.CurrentQuantity).Round(3)) {
			out = append(out, Discrepancy{ItemID: item.ID, Name: item.Name, Cached: item.CurrentQuantity, Replayed: replayed})
		}
	}
	return out, nil
}

// Replay folds movements into a quantity, flooring at zero after each out.
func Replay(movements []StockMovement) float64 {
	cur := 0.0
	for _, mv := range movements {
		switch mv.Type {
		case MovementIn:
			cur = decimal.NewFromFloat(cur).Add(decimal.NewFromFloat(mv.Quantity)).Round(3).InexactFloat64()
		case MovementOut:
			cur, _ = deduct(cur, mv.Quantity)
		}
	}
	return cur
}

// deduct returns the quantity left after removing requested from current and
// the amount actually removed.
func deduct(current, requested float64) (remaining, applied float64) {
	cur := decimal.NewFromFloat(current).Round(3)
	left := decimal.Max(decimal.Zero, cur.Sub(decimal.NewFromFloat(requested).Round(3)))
	return left.InexactFloat64(), cur.Sub(left).InexactFloat64()
}

func qty(v float64) float64 {
	return decimal.NewFromFloat(v).Round(3).InexactFloat64()
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func (s *Service) approval(ctx context.Context, ref, actor uuid.UUID, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  approvalModule,
		RefID:   ref,
		ActorID: actor,
		Action:  action,
		Note:    note,
		At:      s.now(),
	})
	if err != nil {
		s.logger.Warn("approval log write failed", slog.String("ref", ref.String()), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actor uuid.UUID, action, entity string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   entity,
		EntityID: id.String(),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("audit write failed", slog.String("action", action), slog.Any("error", err))
	}
}
