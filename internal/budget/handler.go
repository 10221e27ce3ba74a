package budget

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

// Request is the JSON payload for creating or updating a budget.
type Request struct {
	FinancialYearID int64  `json:"financial_year_id" validate:"required,min=1"`
	Name            string `json:"name" validate:"required,max=200"`
	IsActive        *bool  `json:"is_active"`
}

// ItemRequest is the JSON payload for one budget line.
type ItemRequest struct {
	LedgerAccountID  int64             `json:"ledger_account_id" validate:"required,min=1"`
	CostCenterID     *int64            `json:"cost_center_id"`
	DistributeEvenly bool              `json:"distribute_evenly"`
	AnnualAmount     decimal.Decimal   `json:"annual_amount"`
	Months           []decimal.Decimal `json:"months" validate:"omitempty,len=12"`
}

// Routes mounts the budget endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/budgets", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Put("/{id}/items", h.SetItem)
		r.Delete("/{id}/items/{itemID}", h.RemoveItem)
		r.Get("/{id}/variance", h.Variance)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	var yearID *int64
	if raw := r.URL.Query().Get("year_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
			return
		}
		yearID = &id
	}
	budgets, err := h.service.List(r.Context(), tenant, yearID)
	if err != nil {
		h.fail(w, "list budgets", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"budgets": budgets})
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
	b, err := h.service.Get(r.Context(), tenant, id)
	if err != nil {
		h.fail(w, "get budget", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), tenant, req.input())
	if err != nil {
		h.fail(w, "create budget", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	updated, err := h.service.Update(r.Context(), tenant, id, req.input())
	if err != nil {
		h.fail(w, "update budget", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
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
		h.fail(w, "delete budget", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) SetItem(w http.ResponseWriter, r *http.Request) {
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
	input := ItemInput{
		LedgerAccountID:  req.LedgerAccountID,
		CostCenterID:     req.CostCenterID,
		DistributeEvenly: req.DistributeEvenly,
		AnnualAmount:     req.AnnualAmount,
	}
	copy(input.Months[:], req.Months)
	item, err := h.service.SetItem(r.Context(), tenant, id, input)
	if err != nil {
		h.fail(w, "set budget item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
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
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.RemoveItem(r.Context(), tenant, id, itemID); err != nil {
		h.fail(w, "remove budget item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) Variance(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf, err = time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
			return
		}
	}
	report, err := h.service.Variance(r.Context(), tenant, id, asOf)
	if err != nil {
		h.fail(w, "budget variance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Request, bool) {
	var req Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return Request{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return Request{}, false
	}
	return req, true
}

func (req Request) input() Input {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Input{FinancialYearID: req.FinancialYearID, Name: req.Name, IsActive: active}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
