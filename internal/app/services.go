package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/oomaallah/hotelops/internal/accounting"
	"github.com/oomaallah/hotelops/internal/catalog"
	"github.com/oomaallah/hotelops/internal/integration"
	"github.com/oomaallah/hotelops/internal/inventory"
	jobmetrics "github.com/oomaallah/hotelops/internal/jobs"
	"github.com/oomaallah/hotelops/internal/observability"
	"github.com/oomaallah/hotelops/internal/platform/cache"
	"github.com/oomaallah/hotelops/internal/platform/db"
	"github.com/oomaallah/hotelops/internal/restaurant"
	"github.com/oomaallah/hotelops/internal/shared"
	"github.com/oomaallah/hotelops/jobs"
)

// Services is the wired object graph shared by the API and the worker.
type Services struct {
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Logger *slog.Logger

	Metrics      *observability.Metrics
	Catalog      *catalog.Service
	CatalogCache *catalog.Cache
	Restaurant   *restaurant.Service
	Inventory    *inventory.Service
	Accounting   *accounting.Service
	Poster       *integration.Poster
	Idempotency  *shared.IdempotencyStore
}

// NewServices connects Postgres and Redis and builds every domain service.
func NewServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, error) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		pool.Close()
		return nil, err
	}
	node, err := snowflake.NewNode(cfg.LedgerNodeID)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("app: ledger node: %w", err)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	approvals := shared.NewApprovalRecorder(pool, logger)
	idempotency := shared.NewIdempotencyStore(pool)

	catalogCache := catalog.NewCache(redisClient, cfg.CatalogCacheTTL)
	catalogService := catalog.NewService(catalog.NewRepository(pool), catalogCache, logger)

	restaurantService := restaurant.NewService(
		restaurant.NewRepository(pool),
		catalogService,
		auditLogger,
		idempotency,
		restaurant.NewRedisNotifier(redisClient),
		restaurant.Config{Modules: cfg.Modules, Rates: cfg.Rates(), TaxMode: cfg.TaxMode()},
		logger,
	)

	accountingService := accounting.NewService(accounting.NewRepository(pool), auditLogger, node, logger)
	accountingService.WithMetrics(metrics.Ledger())

	inventoryService := inventory.NewService(
		inventory.NewRepository(pool),
		auditLogger,
		approvals,
		inventory.ServiceConfig{AutoPost: cfg.StockAutoPost},
		logger,
	)
	poster := integration.NewPoster(accountingService, restaurantService, inventoryService, logger)
	inventoryService.SetDeductionHook(poster)

	return &Services{
		Pool:         pool,
		Redis:        redisClient,
		Logger:       logger,
		Metrics:      metrics,
		Catalog:      catalogService,
		CatalogCache: catalogCache,
		Restaurant:   restaurantService,
		Inventory:    inventoryService,
		Accounting:   accountingService,
		Poster:       poster,
		Idempotency:  idempotency,
	}, nil
}

// Maintenance builds the consistency checks over the wired services.
func (s *Services) Maintenance(cfg *Config, metrics *jobmetrics.Metrics) *jobs.Maintenance {
	return jobs.NewMaintenance(jobs.MaintenanceConfig{
		Ledger:    s.Accounting,
		Stock:     s.Inventory,
		Orders:    s.Restaurant,
		Keys:      s.Idempotency,
		Retention: cfg.IdempotencyRetention,
		Metrics:   metrics,
		Logger:    s.Logger,
	})
}

// Ready pings Postgres and Redis.
func (s *Services) Ready(ctx context.Context) error {
	if err := s.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := s.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close releases the connections.
func (s *Services) Close() {
	if err := s.Redis.Close(); err != nil {
		s.Logger.Warn("redis close", slog.Any("error", err))
	}
	s.Pool.Close()
}
