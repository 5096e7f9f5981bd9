package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/urfave/cli/v2"

	"github.com/oomaallah/hotelops/internal/accounting"
	"github.com/oomaallah/hotelops/internal/app"
	"github.com/oomaallah/hotelops/internal/catalog"
	"github.com/oomaallah/hotelops/internal/integration"
	"github.com/oomaallah/hotelops/internal/inventory"
	"github.com/oomaallah/hotelops/internal/platform/db"
	"github.com/oomaallah/hotelops/internal/restaurant"
	"github.com/oomaallah/hotelops/jobs"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Usage: "apply migrations before serving"},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			return serve(c.Context, cfg, logger, c.Bool("migrate"))
		},
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger, migrate bool) error {
	services, err := app.NewServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer services.Close()

	if migrate {
		if err := db.Migrate(ctx, services.Pool, logger); err != nil {
			return err
		}
	}
	if err := services.CatalogCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("catalog invalidation listener", slog.Any("error", err))
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RestaurantHandler:  restaurant.NewHandler(logger, services.Restaurant),
		CatalogHandler:     catalog.NewHandler(services.Catalog, logger),
		InventoryHandler:   inventory.NewHandler(logger, services.Inventory),
		AccountingHandler:  accounting.NewHandler(logger, services.Accounting),
		IntegrationHandler: integration.NewHandler(logger, services.Poster),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            services.Metrics,
		Ready:              services.Ready,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending database migrations",
		Action: func(c *cli.Context) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			pool, err := db.New(c.Context, cfg.PGDSN)
			if err != nil {
				return err
			}
			defer pool.Close()
			return db.Migrate(c.Context, pool, logger)
		},
	}
}
