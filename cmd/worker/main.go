package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/app"
	"github.com/ledgerline/ledgerline/internal/coa"
	"github.com/ledgerline/ledgerline/internal/costcenter"
	"github.com/ledgerline/ledgerline/internal/fiscal"
	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/platform/cache"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/recurring"
	"github.com/ledgerline/ledgerline/internal/shared"
	"github.com/ledgerline/ledgerline/internal/voucher"
	"github.com/ledgerline/ledgerline/jobs"
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
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	auditLogger := shared.NewAuditLogger(pool)
	reportCache := ledger.NewReportCache(redisClient, 10*time.Minute)

	coaRepo := coa.NewRepository(pool)
	costCenterRepo := costcenter.NewRepository(pool)
	fiscalRepo := fiscal.NewRepository(pool)

	voucherRepo := voucher.NewRepository(pool)
	voucherService := voucher.NewService(voucherRepo, coaRepo, costCenterSource{repo: costCenterRepo}, fiscalRepo, auditLogger, reportCache)

	recurringRepo := recurring.NewRepository(pool)
	recurringService := recurring.NewService(recurringRepo, voucherService, auditLogger, logger)

	metrics := jobmetrics.NewMetrics(nil)

	processTask, err := jobs.NewRecurringProcessTask(jobs.RecurringProcessPayload{})
	if err != nil {
		logger.Error("build recurring process task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRecurringProcess, Handler: jobs.RecurringProcessor(recurringService, logger, metrics)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 6 * * *", Task: processTask, Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
