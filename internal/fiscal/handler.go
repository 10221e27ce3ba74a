package fiscal

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// CreateRequest is the JSON payload for a new financial year.
type CreateRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	IsCurrent bool   `json:"is_current"`
}

// Routes mounts the financial-year endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/financial-years", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/current", h.Current)
		r.Post("/", h.Create)
		r.Put("/{id}/current", h.SetCurrent)
		r.Put("/{id}/lock", h.Lock)
		r.Put("/{id}/unlock", h.Unlock)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	years, err := h.service.List(r.Context(), tenant)
	if err != nil {
		h.fail(w, "list financial years", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"financial_years": years})
}

func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	year, err := h.service.Current(r.Context(), tenant)
	if err != nil {
		h.fail(w, "current financial year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, year)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	start, _ := time.Parse("2006-01-02", req.StartDate)
	end, _ := time.Parse("2006-01-02", req.EndDate)
	year, err := h.service.Create(r.Context(), tenant, CreateInput{StartDate: start, EndDate: end, IsCurrent: req.IsCurrent})
	if err != nil {
		h.fail(w, "create financial year", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, year)
}

func (h *Handler) SetCurrent(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, "set current financial year", h.service.SetCurrent)
}

func (h *Handler) Lock(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, "lock financial year", h.service.Lock)
}

func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, "unlock financial year", h.service.Unlock)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, "delete financial year", h.service.Delete)
}

func (h *Handler) simple(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, shared.Tenant, int64) error) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := fn(r.Context(), tenant, id); err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
