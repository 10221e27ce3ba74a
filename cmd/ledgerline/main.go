package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerline/ledgerline/internal/app"
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/budget"
	"github.com/ledgerline/ledgerline/internal/coa"
	"github.com/ledgerline/ledgerline/internal/costcenter"
	"github.com/ledgerline/ledgerline/internal/fiscal"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/observability"
	"github.com/ledgerline/ledgerline/internal/party"
	"github.com/ledgerline/ledgerline/internal/platform/cache"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/recon"
	"github.com/ledgerline/ledgerline/internal/recurring"
	"github.com/ledgerline/ledgerline/internal/shared"
	"github.com/ledgerline/ledgerline/internal/voucher"
)

// costCenterSource narrows costcenter.Repository to the slice the voucher
// engine needs.
type costCenterSource struct {
	repo costcenter.Repository
}

func (s costCenterSource) Get(ctx context.Context, businessID, id int64) (voucher.CostCenterRef, error) {
	cc, err := s.repo.Get(ctx, businessID, id)
	if err != nil {
		return voucher.CostCenterRef{}, err
	}
	return voucher.CostCenterRef{ID: cc.ID, IsActive: cc.IsActive}, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	reportCache := ledger.NewReportCache(redisClient, 10*time.Minute)

	coaRepo := coa.NewRepository(dbpool)
	coaService := coa.NewService(coaRepo, auditLogger)
	coaHandler := coa.NewHandler(logger, coaService)

	costCenterRepo := costcenter.NewRepository(dbpool)
	costCenterService := costcenter.NewService(costCenterRepo, auditLogger)
	costCenterHandler := costcenter.NewHandler(logger, costCenterService)

	fiscalRepo := fiscal.NewRepository(dbpool)
	fiscalService := fiscal.NewService(fiscalRepo, auditLogger)
	fiscalHandler := fiscal.NewHandler(logger, fiscalService)

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo, coaRepo, fiscalRepo)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, reportCache)

	voucherRepo := voucher.NewRepository(dbpool)
	voucherService := voucher.NewService(voucherRepo, coaRepo, costCenterSource{repo: costCenterRepo}, fiscalRepo, auditLogger, reportCache)
	voucherHandler := voucher.NewHandler(logger, voucherService)

	partyRepo := party.NewRepository(dbpool)
	partyService := party.NewService(partyRepo, ledgerService, auditLogger)
	partyHandler := party.NewHandler(logger, partyService)

	reconRepo := recon.NewRepository(dbpool)
	reconService := recon.NewService(reconRepo, coaRepo, ledgerService, auditLogger)
	reconHandler := recon.NewHandler(logger, reconService)

	budgetRepo := budget.NewRepository(dbpool)
	budgetService := budget.NewService(budgetRepo, coaRepo, fiscalRepo, auditLogger)
	budgetHandler := budget.NewHandler(logger, budgetService)

	recurringRepo := recurring.NewRepository(dbpool)
	recurringService := recurring.NewService(recurringRepo, voucherService, auditLogger, logger)
	recurringHandler := recurring.NewHandler(logger, recurringService)

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService)

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		COAHandler:        coaHandler,
		CostCenterHandler: costCenterHandler,
		FiscalHandler:     fiscalHandler,
		VoucherHandler:    voucherHandler,
		LedgerHandler:     ledgerHandler,
		PartyHandler:      partyHandler,
		ReconHandler:      reconHandler,
		BudgetHandler:     budgetHandler,
		RecurringHandler:  recurringHandler,
		AuditHandler:      auditHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
