package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oomaallah/hotelops/internal/platform/httpx"
)

// Handler exposes read-only menu endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/menu", h.menu)
	r.With(httpx.RequireRole("restaurant_manager")).Post("/invalidate", h.invalidate)
}

func (h *Handler) menu(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Menu(r.Context(), r.URL.Query().Get("all") != "true")
	if err != nil {
		h.logger.Error("list menu", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Invalidate(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
