package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/oomaallah/hotelops/internal/platform/httpx"
)

// Roles allowed to decide stock requests.
var approverRoles = []string{"store_manager", "general_manager"}

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.listItems)
	r.Get("/items/low", h.lowStock)
	r.Get("/items/{id}/movements", h.movements)
	r.Get("/requests", h.listRequests)
	r.Get("/requests/{id}/history", h.requestHistory)

	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireActor)
		r.Post("/items", h.createItem)
		r.Post("/items/{id}/receive", h.receive)
		r.Post("/requests", h.submitRequest)
	})
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireRole(approverRoles...))
		r.Post("/requests/{id}/approve", h.approve)
		r.Post("/requests/{id}/reject", h.reject)
	})
}

type itemRequest struct {
	Name            string  `json:"name" validate:"required,max=120"`
	Unit            string  `json:"unit" validate:"required,max=32"`
	Category        string  `json:"category" validate:"max=64"`
	InitialQuantity float64 `json:"initial_quantity" validate:"gte=0"`
	MinimumQuantity float64 `json:"minimum_quantity" validate:"gte=0"`
	UnitCost        float64 `json:"unit_cost" validate:"gte=0"`
}

type receiveRequest struct {
	Quantity  float64    `json:"quantity" validate:"gt=0"`
	Notes     string     `json:"notes" validate:"max=500"`
	RequestID *uuid.UUID `json:"request_id"`
}

type stockRequestBody struct {
	StockItemID uuid.UUID `json:"stock_item_id" validate:"required"`
	Type        string    `json:"request_type" validate:"required,oneof=replenishment deduction"`
	Quantity    float64   `json:"quantity" validate:"gt=0"`
	Reason      string    `json:"reason" validate:"max=500"`
	Urgency     string    `json:"urgency" validate:"omitempty,oneof=low normal high urgent"`
}

type decisionRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := httpx.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		h.fail(w, "list stock items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context())
	if err != nil {
		h.fail(w, "list low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	item, err := h.service.CreateItem(r.Context(), ItemInput{
		Name:            req.Name,
		Unit:            req.Unit,
		Category:        req.Category,
		InitialQuantity: req.InitialQuantity,
		MinimumQuantity: req.MinimumQuantity,
		UnitCost:        req.UnitCost,
		ActorID:         httpx.ActorID(r),
	})
	if err != nil {
		h.fail(w, "create stock item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req receiveRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	item, err := h.service.ReceiveStock(r.Context(), ReceiveInput{
		ItemID:    id,
		Quantity:  req.Quantity,
		Notes:     req.Notes,
		RequestID: req.RequestID,
		ActorID:   httpx.ActorID(r),
	})
	if err != nil {
		h.fail(w, "receive stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	movements, err := h.service.ListMovements(r.Context(), id)
	if err != nil {
		h.fail(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.ListRequests(r.Context(), RequestStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, "list stock requests", err)
		return
	}
	httpx.JSON(w, http.StatusOK, requests)
}

func (h *Handler) requestHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	history, err := h.service.RequestHistory(r.Context(), id)
	if err != nil {
		h.fail(w, "stock request history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

func (h *Handler) submitRequest(w http.ResponseWriter, r *http.Request) {
	var req stockRequestBody
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	out, err := h.service.SubmitRequest(r.Context(), RequestInput{
		StockItemID: req.StockItemID,
		Type:        RequestType(req.Type),
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		Urgency:     Urgency(req.Urgency),
		RequestedBy: httpx.ActorID(r),
	})
	if err != nil {
		h.fail(w, "submit stock request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, out)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	out, err := h.service.ApproveRequest(r.Context(), id, httpx.ActorID(r), req.Notes)
	if err != nil {
		h.fail(w, "approve stock request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	out, err := h.service.RejectRequest(r.Context(), id, httpx.ActorID(r), req.Notes)
	if err != nil {
		h.fail(w, "reject stock request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
