package recon

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// Request is the JSON payload for opening a reconciliation.
type Request struct {
	LedgerAccountID  int64           `json:"ledger_account_id" validate:"required,min=1"`
	StatementDate    string          `json:"statement_date" validate:"required,datetime=2006-01-02"`
	StatementBalance decimal.Decimal `json:"statement_balance"`
}

// ItemRequest links a journal entry into a reconciliation.
type ItemRequest struct {
	JournalEntryID int64 `json:"journal_entry_id" validate:"required,min=1"`
}

// Routes mounts the reconciliation endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/reconciliations", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/items", h.AddItem)
		r.Delete("/{id}/items/{entryID}", h.RemoveItem)
		r.Post("/{id}/complete", h.Complete)
		r.Post("/{id}/reopen", h.Reopen)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	var accountID *int64
	if raw := r.URL.Query().Get("ledger_account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
			return
		}
		accountID = &id
	}
	recs, err := h.service.List(r.Context(), tenant, accountID)
	if err != nil {
		h.fail(w, "list reconciliations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reconciliations": recs})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	rec, err := h.service.Get(r.Context(), tenant, id)
	if err != nil {
		h.fail(w, "get reconciliation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	var req Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.StatementDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), tenant, CreateInput{
		LedgerAccountID:  req.LedgerAccountID,
		StatementDate:    date,
		StatementBalance: req.StatementBalance,
	})
	if err != nil {
		h.fail(w, "create reconciliation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), tenant, id); err != nil {
		h.fail(w, "delete reconciliation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req ItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rec, err := h.service.AddItem(r.Context(), tenant, id, req.JournalEntryID)
	if err != nil {
		h.fail(w, "add reconciliation item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	entryID, err := pathID(r, "entryID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	rec, err := h.service.RemoveItem(r.Context(), tenant, id, entryID)
	if err != nil {
		h.fail(w, "remove reconciliation item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	rec, err := h.service.Complete(r.Context(), tenant, id)
	if err != nil {
		h.fail(w, "complete reconciliation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	rec, err := h.service.Reopen(r.Context(), tenant, id)
	if err != nil {
		h.fail(w, "reopen reconciliation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
