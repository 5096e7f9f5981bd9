package restaurant

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/oomaallah/hotelops/internal/platform/httpx"
	"github.com/oomaallah/hotelops/internal/shared"
)

// Handler exposes the point-of-sale API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers restaurant routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/tables", h.listTables)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.showOrder)
	r.Get("/stations/{station}/tickets", h.stationTickets)
	r.Get("/bills", h.listBills)
	r.Get("/bills/{id}", h.showBill)
	r.Get("/bills/{id}/payments", h.billPayments)
	r.Get("/payments", h.listPayments)

	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireActor)
		r.Post("/orders", h.openOrder)
		r.Post("/orders/{id}/close", h.closeOrder)
		r.Post("/orders/{id}/void", h.voidOrder)
		r.Post("/orders/{id}/charges", h.setCharges)
		r.Post("/orders/{id}/items", h.addItem)
		r.Post("/orders/{id}/recompute", h.recompute)
		r.Post("/orders/{id}/dispatch", h.dispatch)
		r.Post("/orders/{id}/bill", h.createBill)
		r.Patch("/items/{id}", h.changeQuantity)
		r.Post("/items/{id}/void", h.voidItem)
		r.Post("/tickets/{id}/printed", h.markPrinted)
		r.Post("/tickets/{id}/complete", h.completeTicket)
		r.Post("/bills/{id}/void", h.voidBill)
		r.Post("/bills/{id}/payments", h.recordPayment)
	})
}

type openOrderRequest struct {
	TableID *uuid.UUID `json:"table_id"`
	Notes   string     `json:"notes" validate:"max=500"`
}

type addItemRequest struct {
	MenuItemID uuid.UUID `json:"menu_item_id" validate:"required"`
	Quantity   int       `json:"quantity" validate:"omitempty,min=1,max=999"`
	Notes      string    `json:"notes" validate:"max=500"`
}

type changeQuantityRequest struct {
	Delta int `json:"delta" validate:"required,ne=0,min=-999,max=999"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type chargesRequest struct {
	DiscountAmount float64 `json:"discount_amount" validate:"gte=0"`
	ServiceCharge  float64 `json:"service_charge" validate:"gte=0"`
}

type paymentRequest struct {
	Amount    float64 `json:"amount" validate:"gt=0"`
	Method    string  `json:"method" validate:"required,oneof=cash card mobile transfer room_charge"`
	Reference *string `json:"reference" validate:"omitempty,max=120"`
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

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.service.ListTables(r.Context())
	if err != nil {
		h.fail(w, "list tables", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tables)
}

func (h *Handler) openOrder(w http.ResponseWriter, r *http.Request) {
	var req openOrderRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	order, err := h.service.OpenOrder(r.Context(), OpenOrderInput{TableID: req.TableID, Notes: req.Notes, CreatedBy: httpx.ActorID(r)})
	if err != nil {
		h.fail(w, "open order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context(), OrderFilter{Status: OrderStatus(r.URL.Query().Get("status"))})
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) showOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.OrderDetail(r.Context(), id)
	if err != nil {
		h.fail(w, "show order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) closeOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	order, err := h.service.CloseOrder(r.Context(), id, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "close order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) voidOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	order, err := h.service.VoidOrder(r.Context(), id, httpx.ActorID(r), req.Reason)
	if err != nil {
		h.fail(w, "void order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) setCharges(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req chargesRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	order, err := h.service.SetCharges(r.Context(), ChargesInput{
		OrderID:       id,
		Discount:      req.DiscountAmount,
		ServiceCharge: req.ServiceCharge,
		ActorID:       httpx.ActorID(r),
	})
	if err != nil {
		h.fail(w, "set charges", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	item, err := h.service.AddItem(r.Context(), AddItemInput{
		OrderID:    id,
		MenuItemID: req.MenuItemID,
		Quantity:   req.Quantity,
		Notes:      req.Notes,
		ActorID:    httpx.ActorID(r),
	})
	if err != nil {
		h.fail(w, "add item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) recompute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Recompute(r.Context(), id)
	if err != nil {
		h.fail(w, "recompute order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) changeQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req changeQuantityRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	item, err := h.service.ChangeQuantity(r.Context(), id, req.Delta, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "change quantity", err)
		return
	}
	if item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) voidItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	item, err := h.service.VoidItem(r.Context(), id, httpx.ActorID(r), req.Reason)
	if err != nil {
		h.fail(w, "void item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	tickets, err := h.service.Dispatch(r.Context(), id, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "dispatch order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tickets)
}

func (h *Handler) stationTickets(w http.ResponseWriter, r *http.Request) {
	station, err := ParseStation(chi.URLParam(r, "station"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var statuses []TicketStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			statuses = append(statuses, TicketStatus(strings.TrimSpace(part)))
		}
	}
	tickets, err := h.service.ListStationTickets(r.Context(), station, statuses)
	if err != nil {
		h.fail(w, "station tickets", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tickets)
}

func (h *Handler) markPrinted(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	ticket, err := h.service.MarkPrinted(r.Context(), id, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "mark printed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ticket)
}

func (h *Handler) completeTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	ticket, err := h.service.CompleteTicket(r.Context(), id, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "complete ticket", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ticket)
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	bill, err := h.service.CreateBill(r.Context(), CreateBillInput{OrderID: id, ActorID: httpx.ActorID(r)})
	if err != nil {
		h.fail(w, "create bill", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	filter := BillFilter{Status: BillStatus(r.URL.Query().Get("status"))}
	var err error
	if filter.From, err = parseDate(r.URL.Query().Get("from")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = parseDate(r.URL.Query().Get("to")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	bills, err := h.service.ListBills(r.Context(), filter)
	if err != nil {
		h.fail(w, "list bills", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bills)
}

func (h *Handler) showBill(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	bill, err := h.service.GetBill(r.Context(), id)
	if err != nil {
		h.fail(w, "show bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) voidBill(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	bill, err := h.service.VoidBill(r.Context(), id, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "void bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), RecordPaymentInput{
		BillID:         id,
		Amount:         req.Amount,
		Method:         PaymentMethod(req.Method),
		ReceivedBy:     httpx.ActorID(r),
		Reference:      req.Reference,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.fail(w, "record payment", err)
		return
	}
	bill, err := h.service.GetBill(r.Context(), id)
	if err != nil {
		h.fail(w, "reload bill", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"payment": payment, "bill": bill})
}

func (h *Handler) billPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.fail(w, "list payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if from == nil || to == nil {
		httpx.RespondError(w, shared.NewError(shared.ErrValidation, "from and to are required"))
		return
	}
	payments, err := h.service.ListPaymentsBetween(r.Context(), *from, *to)
	if err != nil {
		h.fail(w, "list payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, shared.NewError(shared.ErrValidation, "dates must be YYYY-MM-DD")
	}
	return &t, nil
}
