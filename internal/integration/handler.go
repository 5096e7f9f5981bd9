package integration

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oomaallah/hotelops/internal/platform/httpx"
)

// Handler exposes manual ledger posting of source documents.
type Handler struct {
	logger *slog.Logger
	poster *Poster
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, poster *Poster) *Handler {
	return &Handler{logger: logger, poster: poster}
}

// MountRoutes registers ledger posting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(httpx.RequireRole("accountant", "finance_manager"))
	r.Post("/bills/{id}", h.postBill)
	r.Post("/stock-requests/{id}", h.postStockRequest)
}

func (h *Handler) postBill(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.poster.PostBill(r.Context(), id, httpx.ActorID(r))
	if err != nil {
		if !httpx.IsClientError(err) {
			h.logger.Error("post bill", slog.String("bill_id", id.String()), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) postStockRequest(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.poster.PostStockRequest(r.Context(), id, httpx.ActorID(r))
	if err != nil {
		if !httpx.IsClientError(err) {
			h.logger.Error("post stock request", slog.String("request_id", id.String()), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}
