package recurring

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

// ItemRequest is one template line.
type ItemRequest struct {
	LedgerAccountID int64           `json:"ledger_account_id" validate:"required,min=1"`
	CostCenterID    *int64          `json:"cost_center_id"`
	DebitAmount     decimal.Decimal `json:"debit_amount"`
	CreditAmount    decimal.Decimal `json:"credit_amount"`
	Narration       string          `json:"narration" validate:"max=500"`
}

// Request is the JSON payload for creating or updating a schedule.
type Request struct {
	VoucherTypeID int64         `json:"voucher_type_id" validate:"required,min=1"`
	Name          string        `json:"name" validate:"required,max=200"`
	Frequency     string        `json:"frequency" validate:"required,oneof=daily weekly monthly quarterly yearly"`
	DayOfWeek     *int          `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	DayOfMonth    *int          `json:"day_of_month" validate:"omitempty,min=1,max=31"`
	Month         *int          `json:"month" validate:"omitempty,min=1,max=12"`
	StartDate     string        `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       *string       `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Occurrences   *int          `json:"occurrences" validate:"omitempty,min=1"`
	Narration     string        `json:"narration" validate:"max=500"`
	IsActive      *bool         `json:"is_active"`
	Template      []ItemRequest `json:"template" validate:"required,min=1,dive"`
}

func (req Request) input() (Input, error) {
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return Input{}, err
	}
	var end *time.Time
	if req.EndDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			return Input{}, err
		}
		end = &parsed
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	template := make([]TemplateItem, 0, len(req.Template))
	for _, it := range req.Template {
		template = append(template, TemplateItem{
			LedgerAccountID: it.LedgerAccountID,
			CostCenterID:    it.CostCenterID,
			DebitAmount:     it.DebitAmount,
			CreditAmount:    it.CreditAmount,
			Narration:       it.Narration,
		})
	}
	return Input{
		VoucherTypeID: req.VoucherTypeID,
		Name:          req.Name,
		Frequency:     Frequency(req.Frequency),
		DayOfWeek:     req.DayOfWeek,
		DayOfMonth:    req.DayOfMonth,
		Month:         req.Month,
		StartDate:     start,
		EndDate:       end,
		Occurrences:   req.Occurrences,
		Narration:     req.Narration,
		IsActive:      active,
		Template:      template,
	}, nil
}

// Routes mounts the recurring transaction endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/recurring-transactions", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/process-due", h.ProcessDue)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/generate", h.Generate)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	out, err := h.service.List(r.Context(), tenant, activeOnly)
	if err != nil {
		h.fail(w, "list recurring transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"recurring_transactions": out})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	rec, err := h.service.Get(r.Context(), tenant, id)
	if err != nil {
		h.fail(w, "get recurring transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	input, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), tenant, input)
	if err != nil {
		h.fail(w, "create recurring transaction", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	input, ok := h.decode(w, r)
	if !ok {
		return
	}
	updated, err := h.service.Update(r.Context(), tenant, id, input)
	if err != nil {
		h.fail(w, "update recurring transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), tenant, id); err != nil {
		h.fail(w, "delete recurring transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	v, err := h.service.Generate(r.Context(), tenant, id)
	if err != nil {
		h.fail(w, "generate recurring voucher", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) ProcessDue(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	count, err := h.service.ProcessDue(r.Context(), tenant)
	if err != nil {
		h.fail(w, "process due recurring transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"generated": count})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var req Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return Input{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return Input{}, false
	}
	input, err := req.input()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
		return Input{}, false
	}
	return input, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
