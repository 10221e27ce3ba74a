package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes mounts the audit trail endpoint.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/audit-trail", h.Trail)
}

func (h *Handler) Trail(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filters := Filters{
		Entity: shared.AuditEntity(q.Get("entity")),
		Action: q.Get("action"),
	}
	for key, dst := range map[string]*int64{"entity_id": &filters.EntityID, "actor_id": &filters.ActorID} {
		if raw := q.Get(key); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
				return
			}
			*dst = v
		}
	}
	for key, dst := range map[string]**time.Time{"from": &filters.From, "to": &filters.To} {
		if raw := q.Get(key); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
				return
			}
			*dst = &parsed
		}
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	result, err := h.service.Trail(r.Context(), tenant, filters)
	if err != nil {
		h.logger.Error("audit trail", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
