package restaurant

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oomaallah/hotelops/internal/catalog"
	"github.com/oomaallah/hotelops/internal/charges"
	"github.com/oomaallah/hotelops/internal/shared"
)

// Repository abstracts storage for the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error)
	ListOrderTickets(ctx context.Context, orderID uuid.UUID) ([]Ticket, error)
	ListStationTickets(ctx context.Context, station Station, statuses []TicketStatus) ([]Ticket, error)
	ListTables(ctx context.Context) ([]Table, error)
	ActiveBillForOrder(ctx context.Context, orderID uuid.UUID) (*Bill, error)
	GetBill(ctx context.Context, id uuid.UUID) (Bill, error)
	ListBills(ctx context.Context, filter BillFilter) ([]Bill, error)
	ListPayments(ctx context.Context, billID uuid.UUID) ([]Payment, error)
	ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]Payment, error)
}

// TxRepository exposes the writes available inside a transaction.
type TxRepository interface {
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error)
	SetTableStatus(ctx context.Context, id uuid.UUID, status TableStatus) error
	FindOpenOrderForTable(ctx context.Context, tableID uuid.UUID) (*Order, error)

	InsertOrder(ctx context.Context, order Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error)
	UpdateOrderTotals(ctx context.Context, order Order) error
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus, closedAt *time.Time, at time.Time) error

	InsertItem(ctx context.Context, item OrderItem) error
	GetItemForUpdate(ctx context.Context, id uuid.UUID) (OrderItem, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error)
	UpdateItemQuantity(ctx context.Context, id uuid.UUID, qty int, at time.Time) error
	UpdateItemStatus(ctx context.Context, id uuid.UUID, status ItemStatus, at time.Time) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	MarkItemsSent(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error)

	InsertTicket(ctx context.Context, ticket Ticket) error
	GetTicketForUpdate(ctx context.Context, id uuid.UUID) (Ticket, error)
	UpdateTicketStatus(ctx context.Context, id uuid.UUID, status TicketStatus, at time.Time) error

	ActiveBillForOrder(ctx context.Context, orderID uuid.UUID) (*Bill, error)
	InsertBill(ctx context.Context, bill Bill) error
	GetBillForUpdate(ctx context.Context, id uuid.UUID) (Bill, error)
	UpdateBillStatus(ctx context.Context, id uuid.UUID, status BillStatus, paidAt *time.Time, at time.Time) error
	InsertPayment(ctx context.Context, payment Payment) error
	SumPayments(ctx context.Context, billID uuid.UUID) (float64, error)
}

// MenuLookup resolves menu items for order lines.
type MenuLookup interface {
	MenuItem(ctx context.Context, id uuid.UUID) (catalog.MenuItem, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards client retries of payment submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Config carries the injected settings of the restaurant module.
type Config struct {
	Modules shared.Modules
	Rates   charges.Rates
	TaxMode charges.Mode
}

// Service coordinates restaurant operations.
type Service struct {
	repo     Repository
	menu     MenuLookup
	audit    AuditPort
	idem     IdempotencyPort
	notifier Notifier
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service. audit, idem and notifier may be nil.
func NewService(repo Repository, menu MenuLookup, audit AuditPort, idem IdempotencyPort, notifier Notifier, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TaxMode == "" {
		cfg.TaxMode = charges.ModeFlat
	}
	return &Service{
		repo:     repo,
		menu:     menu,
		audit:    audit,
		idem:     idem,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

func (s *Service) enabled() error {
	if !s.cfg.Modules.Restaurant {
		return ErrModuleDisabled
	}
	return nil
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
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) publish(ctx context.Context, evt StationEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, evt); err != nil {
		s.logger.Warn("station notify failed", slog.String("event", evt.Type), slog.Any("error", err))
	}
}

// billableLines converts non-void items into calculator lines.
func billableLines(items []OrderItem) []charges.Line {
	lines := make([]charges.Line, 0, len(items))
	for _, it := range items {
		if it.Status == ItemVoid {
			continue
		}
		lines = append(lines, charges.Line{UnitPrice: it.Price, Quantity: it.Quantity, TaxRate: it.TaxRate})
	}
	return lines
}

func (s *Service) compute(order Order, lines []charges.Line) (charges.Result, error) {
	return charges.Compute(charges.Input{
		Lines:         lines,
		Discount:      order.DiscountAmount,
		ServiceCharge: order.ServiceCharge,
		Rates:         charges.Rates{VAT: order.VATRate, Levy: order.LevyRate},
		Mode:          s.cfg.TaxMode,
	})
}

func applyTotals(order *Order, res charges.Result) {
	order.Subtotal = res.Subtotal
	order.TaxAmount = res.TaxAmount
	order.TourismLevy = res.TourismLevy
	order.ServiceCharge = res.ServiceCharge
	order.DiscountAmount = res.Discount
	order.TotalAmount = res.Total
}
