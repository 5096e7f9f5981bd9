package accounting

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/oomaallah/hotelops/internal/platform/httpx"
	"github.com/oomaallah/hotelops/internal/shared"
)

// Roles allowed to key journal entries and maintain the chart of accounts.
var ledgerRoles = []string{"accountant", "finance_manager"}

// Handler wires finance ledger endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.listAccounts)
	r.Get("/journals", h.listJournals)
	r.Get("/journals/{id}", h.showJournal)
	r.Get("/integrity", h.integrity)
	r.Get("/trial-balance", h.trialBalance)

	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireRole(ledgerRoles...))
		r.Post("/accounts", h.createAccount)
		r.Patch("/accounts/{id}", h.updateAccount)
		r.Post("/journals", h.postManual)
		r.Post("/journals/{id}/reverse", h.reverse)
	})
}

type accountRequest struct {
	Code     string     `json:"code" validate:"required,max=32"`
	Name     string     `json:"name" validate:"required,max=120"`
	Type     string     `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentID *uuid.UUID `json:"parent_id"`
}

type accountUpdateRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=120"`
	Type     *string `json:"type" validate:"omitempty,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	IsActive *bool   `json:"is_active"`
}

type journalLineRequest struct {
	AccountID   uuid.UUID `json:"account_id" validate:"required"`
	Debit       float64   `json:"debit" validate:"gte=0"`
	Credit      float64   `json:"credit" validate:"gte=0"`
	Description string    `json:"description" validate:"max=255"`
}

type manualEntryRequest struct {
	Date        string               `json:"entry_date" validate:"omitempty,datetime=2006-01-02"`
	Description string               `json:"description" validate:"required,max=255"`
	Reference   *string              `json:"reference" validate:"omitempty,max=120"`
	Lines       []journalLineRequest `json:"lines" validate:"required,min=2,dive"`
}

type reverseRequest struct {
	Description string `json:"description" validate:"max=255"`
	Date        string `json:"entry_date" validate:"omitempty,datetime=2006-01-02"`
}

type journalPage struct {
	Data       []JournalEntry    `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	account, err := h.service.CreateAccount(r.Context(), AccountInput{
		Code:     req.Code,
		Name:     req.Name,
		Type:     AccountType(req.Type),
		ParentID: req.ParentID,
	}, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req accountUpdateRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	update := AccountUpdate{Name: req.Name, IsActive: req.IsActive}
	if req.Type != nil {
		t := AccountType(*req.Type)
		update.Type = &t
	}
	account, err := h.service.UpdateAccount(r.Context(), id, update, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) listJournals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pg := shared.PaginationFromQuery(q)
	filter := JournalFilter{
		Status:       JournalStatus(q.Get("status")),
		SourceModule: q.Get("source"),
		Limit:        pg.PerPage,
		Offset:       pg.Offset(),
	}
	var err error
	if filter.From, err = parseDay(q.Get("from")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = parseDay(q.Get("to")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, total, err := h.service.ListJournalEntries(r.Context(), filter)
	if err != nil {
		h.fail(w, "list journals", err)
		return
	}
	if entries == nil {
		entries = []JournalEntry{}
	}
	httpx.JSON(w, http.StatusOK, journalPage{Data: entries, Pagination: pg.WithTotal(total)})
}

func (h *Handler) showJournal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.GetJournal(r.Context(), id)
	if err != nil {
		h.fail(w, "show journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) postManual(w http.ResponseWriter, r *http.Request) {
	var req manualEntryRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	input := ManualEntryInput{
		Description: req.Description,
		Reference:   req.Reference,
		CreatedBy:   httpx.ActorID(r),
		Lines:       make([]PostingLineInput, 0, len(req.Lines)),
	}
	if d, _ := parseDay(req.Date); d != nil {
		input.Date = *d
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, PostingLineInput{
			AccountID:   l.AccountID,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
		})
	}
	entry, err := h.service.PostManual(r.Context(), input)
	if err != nil {
		h.fail(w, "post manual journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	date, _ := parseDay(req.Date)
	entry, err := h.service.ReverseJournal(r.Context(), ReverseInput{
		EntryID:     id,
		ActorID:     httpx.ActorID(r),
		Description: req.Description,
		Date:        date,
	})
	if err != nil {
		h.fail(w, "reverse journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) integrity(w http.ResponseWriter, r *http.Request) {
	issues, err := h.service.CheckIntegrity(r.Context())
	if err != nil {
		h.fail(w, "check ledger integrity", err)
		return
	}
	if issues == nil {
		issues = []IntegrityIssue{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"balanced": len(issues) == 0, "issues": issues})
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDay(q.Get("from"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := parseDay(q.Get("to"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), from, to)
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func parseDay(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, shared.NewError(shared.ErrValidation, "invalid date "+raw+", expected YYYY-MM-DD")
	}
	return &t, nil
}
