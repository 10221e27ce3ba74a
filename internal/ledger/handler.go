package ledger

import (
	"context"
	"fmt"
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
	cache   *ReportCache
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service, cache *ReportCache) *Handler {
	return &Handler{service: service, cache: cache, logger: logger}
}

// Routes mounts the balance and report endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/ledger-accounts/{id}/balance", h.Balance)
	r.Get("/ledger-accounts/{id}/statement", h.Statement)
	r.Route("/reports", func(r chi.Router) {
		r.Get("/trial-balance", h.TrialBalance)
		r.Get("/profit-and-loss", h.ProfitAndLoss)
		r.Get("/balance-sheet", h.BalanceSheet)
		r.Get("/monthly", h.Monthly)
		r.Get("/closing-summary", h.ClosingSummary)
	})
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	q := BalanceQuery{YearID: queryID(r, "year_id")}
	if asOf, ok, err := queryDate(r, "as_of"); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
		return
	} else if ok {
		q.AsOf = &asOf
	}
	balance, err := h.service.AccountBalance(r.Context(), tenant.BusinessID, id, q)
	if err != nil {
		h.fail(w, "account balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	from, okFrom, err := queryDate(r, "from")
	if err != nil || !okFrom {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "from is required as YYYY-MM-DD")
		return
	}
	to, okTo, err := queryDate(r, "to")
	if err != nil || !okTo {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "to is required as YYYY-MM-DD")
		return
	}
	statement, err := h.service.AccountStatement(r.Context(), tenant.BusinessID, id, from, to, queryID(r, "year_id"))
	if err != nil {
		h.fail(w, "account statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, statement)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	tenant, yearID, asOf, ok := h.reportParams(w, r)
	if !ok {
		return
	}
	opts := TrialBalanceOptions{SkipZero: r.URL.Query().Get("skip_zero") == "true"}
	key := fmt.Sprintf("tb:%d:%s:%t", yearID, asOf.Format("2006-01-02"), opts.SkipZero)
	h.cached(w, r, tenant, "trial balance", key, func(ctx context.Context) (any, error) {
		return h.service.TrialBalance(ctx, tenant.BusinessID, asOf, yearID, opts)
	})
}

func (h *Handler) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	tenant, yearID, to, ok := h.reportParams(w, r)
	if !ok {
		return
	}
	var from *time.Time
	if f, okFrom, err := queryDate(r, "from"); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
		return
	} else if okFrom {
		from = &f
	}
	key := fmt.Sprintf("pl:%d:%v:%s", yearID, from, to.Format("2006-01-02"))
	h.cached(w, r, tenant, "profit and loss", key, func(ctx context.Context) (any, error) {
		return h.service.ProfitAndLoss(ctx, tenant.BusinessID, yearID, from, to)
	})
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	tenant, yearID, asOf, ok := h.reportParams(w, r)
	if !ok {
		return
	}
	key := fmt.Sprintf("bs:%d:%s", yearID, asOf.Format("2006-01-02"))
	h.cached(w, r, tenant, "balance sheet", key, func(ctx context.Context) (any, error) {
		return h.service.BalanceSheet(ctx, tenant.BusinessID, asOf, yearID)
	})
}

func (h *Handler) Monthly(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	yearID := queryID(r, "year_id")
	if yearID == nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Year", "year_id is required")
		return
	}
	key := fmt.Sprintf("monthly:%d", *yearID)
	h.cached(w, r, tenant, "monthly series", key, func(ctx context.Context) (any, error) {
		return h.service.MonthlySeries(ctx, tenant.BusinessID, *yearID)
	})
}

func (h *Handler) ClosingSummary(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	yearID := queryID(r, "year_id")
	if yearID == nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Year", "year_id is required")
		return
	}
	key := fmt.Sprintf("closing:%d", *yearID)
	h.cached(w, r, tenant, "closing summary", key, func(ctx context.Context) (any, error) {
		return h.service.ClosingSummary(ctx, tenant.BusinessID, *yearID)
	})
}

// reportParams extracts the year_id and as_of (or to) parameters shared by
// the statement reports. as_of defaults to today.
func (h *Handler) reportParams(w http.ResponseWriter, r *http.Request) (shared.Tenant, int64, time.Time, bool) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return shared.Tenant{}, 0, time.Time{}, false
	}
	yearID := queryID(r, "year_id")
	if yearID == nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Year", "year_id is required")
		return shared.Tenant{}, 0, time.Time{}, false
	}
	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	for _, name := range []string{"as_of", "to"} {
		if d, okDate, err := queryDate(r, name); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
			return shared.Tenant{}, 0, time.Time{}, false
		} else if okDate {
			asOf = d
		}
	}
	return tenant, *yearID, asOf, true
}

func (h *Handler) cached(w http.ResponseWriter, r *http.Request, tenant shared.Tenant, op, key string, build func(context.Context) (any, error)) {
	payload, err := h.cache.Cached(r.Context(), tenant.BusinessID, key, build)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func queryID(r *http.Request, name string) *int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

func queryDate(r *http.Request, name string) (time.Time, bool, error) {
	date := r.URL.Query().Get(name)
	if date == "" {
		return time.Time{}, false, nil
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, false, err
	}
	return parsed, true, nil
}
