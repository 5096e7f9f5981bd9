package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/oomaallah/hotelops/internal/accounting"
	"github.com/oomaallah/hotelops/internal/inventory"
	jobmetrics "github.com/oomaallah/hotelops/internal/jobs"
	"github.com/oomaallah/hotelops/internal/restaurant"
)

// LedgerChecker verifies posted journal entries balance.
type LedgerChecker interface {
	CheckIntegrity(ctx context.Context) ([]accounting.IntegrityIssue, error)
}

// StockReconciler replays stock movements against cached quantities.
type StockReconciler interface {
	Reconcile(ctx context.Context) ([]inventory.Discrepancy, error)
}

// OrderReconciler recomputes cached order totals.
type OrderReconciler interface {
	ReconcileOrderTotals(ctx context.Context, fix bool) ([]restaurant.TotalsDrift, error)
}

// KeyCleaner prunes stale idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Report gathers the findings of one reconciliation sweep.
type Report struct {
	Ledger []accounting.IntegrityIssue `json:"ledger"`
	Stock  []inventory.Discrepancy     `json:"stock"`
	Orders []restaurant.TotalsDrift    `json:"orders"`
}

// Clean reports whether the sweep found nothing.
func (r Report) Clean() bool {
	return len(r.Ledger) == 0 && len(r.Stock) == 0 && len(r.Orders) == 0
}

// Maintenance runs the periodic consistency checks.
type Maintenance struct {
	ledger    LedgerChecker
	stock     StockReconciler
	orders    OrderReconciler
	keys      KeyCleaner
	retention time.Duration
	metrics   *jobmetrics.Metrics
	logger    *slog.Logger
}

// MaintenanceConfig collects the checks and their collaborators. Nil checks
// are skipped.
type MaintenanceConfig struct {
	Ledger    LedgerChecker
	Stock     StockReconciler
	Orders    OrderReconciler
	Keys      KeyCleaner
	Retention time.Duration
	Metrics   *jobmetrics.Metrics
	Logger    *slog.Logger
}

// NewMaintenance constructs the maintenance job set.
func NewMaintenance(cfg MaintenanceConfig) *Maintenance {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 72 * time.Hour
	}
	return &Maintenance{
		ledger:    cfg.Ledger,
		stock:     cfg.Stock,
		orders:    cfg.Orders,
		keys:      cfg.Keys,
		retention: cfg.Retention,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With(slog.String("component", "maintenance")),
	}
}

// CheckLedger runs the ledger integrity check.
func (m *Maintenance) CheckLedger(ctx context.Context) ([]accounting.IntegrityIssue, error) {
	if m.ledger == nil {
		return nil, nil
	}
	tracker := m.metrics.Track(TaskLedgerIntegrity)
	issues, err := m.ledger.CheckIntegrity(ctx)
	if err != nil {
		return nil, tracker.End(err)
	}
	for _, issue := range issues {
		m.logger.Warn("unbalanced journal entry",
			slog.String("entry", issue.EntryNumber),
			slog.Float64("line_debit", issue.LineDebit),
			slog.Float64("line_credit", issue.LineCredit))
	}
	m.metrics.AddDiscrepancies("ledger", len(issues))
	return issues, tracker.End(nil)
}

// CheckStock replays movements against cached stock quantities.
func (m *Maintenance) CheckStock(ctx context.Context) ([]inventory.Discrepancy, error) {
	if m.stock == nil {
		return nil, nil
	}
	tracker := m.metrics.Track(TaskStockReconcile)
	diffs, err := m.stock.Reconcile(ctx)
	if err != nil {
		return nil, tracker.End(err)
	}
	for _, d := range diffs {
		m.logger.Warn("stock quantity drift",
			slog.String("item", d.Name),
			slog.Float64("cached", d.Cached),
			slog.Float64("replayed", d.Replayed))
	}
	m.metrics.AddDiscrepancies("stock", len(diffs))
	return diffs, tracker.End(nil)
}

// CheckOrders recomputes open order totals, rewriting drifted ones when fix is set.
func (m *Maintenance) CheckOrders(ctx context.Context, fix bool) ([]restaurant.TotalsDrift, error) {
	if m.orders == nil {
		return nil, nil
	}
	tracker := m.metrics.Track(TaskOrderTotals)
	drifts, err := m.orders.ReconcileOrderTotals(ctx, fix)
	if err != nil {
		return nil, tracker.End(err)
	}
	for _, d := range drifts {
		m.logger.Warn("order total drift",
			slog.String("order_id", d.OrderID.String()),
			slog.Float64("cached", d.Cached),
			slog.Float64("computed", d.Computed),
			slog.Bool("fixed", d.Fixed))
	}
	m.metrics.AddDiscrepancies("orders", len(drifts))
	return drifts, tracker.End(nil)
}

// CleanupKeys drops idempotency keys older than retention.
func (m *Maintenance) CleanupKeys(ctx context.Context, retention time.Duration) (int64, error) {
	if m.keys == nil {
		return 0, nil
	}
	if retention <= 0 {
		retention = m.retention
	}
	tracker := m.metrics.Track(TaskIdempotencyCleanup)
	n, err := m.keys.Cleanup(ctx, retention)
	if err != nil {
		return 0, tracker.End(err)
	}
	m.logger.Info("idempotency keys pruned", slog.Int64("deleted", n), slog.Duration("retention", retention))
	return n, tracker.End(nil)
}

// Reconcile runs the three consistency checks concurrently.
func (m *Maintenance) Reconcile(ctx context.Context, fixOrders bool) (Report, error) {
	var report Report
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report.Ledger, err = m.CheckLedger(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		report.Stock, err = m.CheckStock(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		report.Orders, err = m.CheckOrders(gctx, fixOrders)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return report, nil
}

// HandleLedgerIntegrity is the asynq handler for TaskLedgerIntegrity.
func (m *Maintenance) HandleLedgerIntegrity(ctx context.Context, _ *asynq.Task) error {
	_, err := m.CheckLedger(ctx)
	return err
}

// HandleStockReconcile is the asynq handler for TaskStockReconcile.
func (m *Maintenance) HandleStockReconcile(ctx context.Context, _ *asynq.Task) error {
	_, err := m.CheckStock(ctx)
	return err
}

// HandleOrderTotals is the asynq handler for TaskOrderTotals.
func (m *Maintenance) HandleOrderTotals(ctx context.Context, t *asynq.Task) error {
	var payload OrderTotalsPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	_, err := m.CheckOrders(ctx, payload.Fix)
	return err
}

// HandleIdempotencyCleanup is the asynq handler for TaskIdempotencyCleanup.
func (m *Maintenance) HandleIdempotencyCleanup(ctx context.Context, t *asynq.Task) error {
	var payload CleanupPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	_, err := m.CleanupKeys(ctx, payload.Retention)
	return err
}

// Handlers returns the task handlers for the worker mux.
func (m *Maintenance) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskLedgerIntegrity, Handler: m.HandleLedgerIntegrity},
		{Type: TaskStockReconcile, Handler: m.HandleStockReconcile},
		{Type: TaskOrderTotals, Handler: m.HandleOrderTotals},
		{Type: TaskIdempotencyCleanup, Handler: m.HandleIdempotencyCleanup},
	}
}

// Cron returns the nightly schedule. Order totals are only reported; fixing
// them is left to an operator.
func (m *Maintenance) Cron() ([]CronRegistration, error) {
	schedule := []struct {
		spec    string
		typ     string
		payload any
	}{
		{"0 3 * * *", TaskLedgerIntegrity, nil},
		{"15 3 * * *", TaskStockReconcile, nil},
		{"30 3 * * *", TaskOrderTotals, OrderTotalsPayload{}},
		{"0 4 * * *", TaskIdempotencyCleanup, CleanupPayload{Retention: m.retention}},
	}
	out := make([]CronRegistration, 0, len(schedule))
	for _, s := range schedule {
		task, err := NewTask(s.typ, s.payload)
		if err != nil {
			return nil, err
		}
		out = append(out, CronRegistration{Spec: s.spec, Task: task})
	}
	return out, nil
}
