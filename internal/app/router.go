package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oomaallah/hotelops/internal/accounting"
	"github.com/oomaallah/hotelops/internal/catalog"
	"github.com/oomaallah/hotelops/internal/integration"
	"github.com/oomaallah/hotelops/internal/inventory"
	"github.com/oomaallah/hotelops/internal/observability"
	"github.com/oomaallah/hotelops/internal/platform/httpx"
	"github.com/oomaallah/hotelops/internal/restaurant"
	"github.com/oomaallah/hotelops/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	RestaurantHandler  *restaurant.Handler
	CatalogHandler     *catalog.Handler
	InventoryHandler   *inventory.Handler
	AccountingHandler  *accounting.Handler
	IntegrationHandler *integration.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
	// Ready reports backend health for /healthz. Nil means always ready.
	Ready func(context.Context) error
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Ready(ctx); err != nil {
				params.Logger.Warn("readiness check failed", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.RestaurantHandler != nil && params.Config != nil && params.Config.Modules.Restaurant {
		r.Route("/restaurant", func(r chi.Router) {
			params.RestaurantHandler.MountRoutes(r)
			if params.CatalogHandler != nil {
				r.Route("/catalog", params.CatalogHandler.MountRoutes)
			}
		})
	}
	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.AccountingHandler != nil {
		r.Route("/accounting", params.AccountingHandler.MountRoutes)
	}
	if params.IntegrationHandler != nil {
		r.Route("/ledger", params.IntegrationHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
