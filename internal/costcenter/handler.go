package costcenter

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

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

// Request is the JSON payload for creating or updating a cost center.
type Request struct {
	ParentID *int64 `json:"parent_id"`
	Name     string `json:"name" validate:"required,max=120"`
	Code     string `json:"code" validate:"required,max=32"`
	IsActive *bool  `json:"is_active"`
}

// Routes mounts the cost-center endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/cost-centers", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/flat", h.FlattenHierarchy)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	centers, err := h.service.List(r.Context(), tenant)
	if err != nil {
		h.fail(w, "list cost centers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cost_centers": centers})
}

func (h *Handler) FlattenHierarchy(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	flat, err := h.service.FlattenHierarchy(r.Context(), tenant)
	if err != nil {
		h.fail(w, "flatten cost centers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cost_centers": flat})
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
	center, err := h.service.Create(r.Context(), tenant, Input{
		ParentID: req.ParentID,
		Name:     req.Name,
		Code:     req.Code,
		IsActive: true,
	})
	if err != nil {
		h.fail(w, "create cost center", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, center)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	center, err := h.service.Update(r.Context(), tenant, id, Input{
		ParentID: req.ParentID,
		Name:     req.Name,
		Code:     req.Code,
		IsActive: active,
	})
	if err != nil {
		h.fail(w, "update cost center", err)
		return
	}
	httpx.JSON(w, http.StatusOK, center)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), tenant, id); err != nil {
		h.fail(w, "delete cost center", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted"})
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
