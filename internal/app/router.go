package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/budget"
	"github.com/ledgerline/ledgerline/internal/coa"
	"github.com/ledgerline/ledgerline/internal/costcenter"
	"github.com/ledgerline/ledgerline/internal/fiscal"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/observability"
	"github.com/ledgerline/ledgerline/internal/party"
	"github.com/ledgerline/ledgerline/internal/recon"
	"github.com/ledgerline/ledgerline/internal/recurring"
	"github.com/ledgerline/ledgerline/internal/voucher"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	COAHandler        *coa.Handler
	CostCenterHandler *costcenter.Handler
	FiscalHandler     *fiscal.Handler
	VoucherHandler    *voucher.Handler
	LedgerHandler     *ledger.Handler
	PartyHandler      *party.Handler
	ReconHandler      *recon.Handler
	BudgetHandler     *budget.Handler
	RecurringHandler  *recurring.Handler
	AuditHandler      *audit.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		params.COAHandler.Routes(r)
		params.CostCenterHandler.Routes(r)
		params.FiscalHandler.Routes(r)
		params.VoucherHandler.Routes(r)
		params.LedgerHandler.Routes(r)
		params.PartyHandler.Routes(r)
		params.ReconHandler.Routes(r)
		params.BudgetHandler.Routes(r)
		params.RecurringHandler.Routes(r)
		params.AuditHandler.Routes(r)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
