package party

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/coa"
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

// Request is the JSON payload for creating or updating a party.
type Request struct {
	Name               string          `json:"name" validate:"required,max=200"`
	Type               string          `json:"type" validate:"required,oneof=customer supplier both"`
	Email              string          `json:"email" validate:"omitempty,email"`
	Phone              string          `json:"phone" validate:"max=30"`
	Address            string          `json:"address" validate:"max=500"`
	CreditLimit        decimal.Decimal `json:"credit_limit"`
	CreditPeriod       int             `json:"credit_period" validate:"min=0"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	OpeningBalanceType string          `json:"opening_balance_type" validate:"omitempty,oneof=debit credit"`
	IsActive           *bool           `json:"is_active"`
}

func (req Request) input() Input {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Input{
		Name:               req.Name,
		Type:               Type(req.Type),
		Email:              req.Email,
		Phone:              req.Phone,
		Address:            req.Address,
		CreditLimit:        req.CreditLimit,
		CreditPeriod:       req.CreditPeriod,
		OpeningBalance:     req.OpeningBalance,
		OpeningBalanceType: coa.BalanceType(req.OpeningBalanceType),
		IsActive:           active,
	}
}

// Routes mounts the party endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/parties", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Get("/{id}/outstanding", h.Outstanding)
		r.Get("/{id}/aging", h.Aging)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	parties, err := h.service.List(r.Context(), tenant)
	if err != nil {
		h.fail(w, "list parties", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"parties": parties})
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
	p, err := h.service.Get(r.Context(), tenant, id)
	if err != nil {
		h.fail(w, "get party", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
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
		h.fail(w, "create party", err)
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
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	updated, err := h.service.Update(r.Context(), tenant, id, req.input())
	if err != nil {
		h.fail(w, "update party", err)
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
		h.fail(w, "delete party", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) Outstanding(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var asOf *time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
			return
		}
		asOf = &parsed
	}
	balance, err := h.service.Outstanding(r.Context(), tenant, id, asOf)
	if err != nil {
		h.fail(w, "party outstanding", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) Aging(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
			return
		}
		asOf = parsed
	}
	var periods []int
	if raw := r.URL.Query().Get("periods"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			days, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || days <= 0 {
				httpx.Problem(w, http.StatusBadRequest, "Invalid Periods", "periods must be positive day counts")
				return
			}
			periods = append(periods, days)
		}
	}
	aging, err := h.service.Aging(r.Context(), tenant, id, asOf, periods)
	if err != nil {
		h.fail(w, "party aging", err)
		return
	}
	httpx.JSON(w, http.StatusOK, aging)
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

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
