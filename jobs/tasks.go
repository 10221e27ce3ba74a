package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
	"github.com/ledgerline/ledgerline/internal/recurring"
	"github.com/ledgerline/ledgerline/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRecurringProcess generates vouchers for all due recurring
	// transactions across every business.
	TaskRecurringProcess = "recurring:process"
)

// RecurringProcessPayload optionally narrows processing to one business.
// A zero BusinessID means every business with active schedules.
type RecurringProcessPayload struct {
	BusinessID int64 `json:"business_id"`
}

// NewRecurringProcessTask constructs the batch-processing task.
func NewRecurringProcessTask(payload RecurringProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecurringProcess, data), nil
}

// RecurringProcessor builds the asynq handler for TaskRecurringProcess.
func RecurringProcessor(svc *recurring.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("recurring_process")
		var payload RecurringProcessPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		var (
			count int
			err   error
		)
		if payload.BusinessID > 0 {
			count, err = svc.ProcessDue(ctx, shared.Tenant{BusinessID: payload.BusinessID})
		} else {
			count, err = svc.ProcessAllDue(ctx)
		}
		if err != nil {
			logger.Error("recurring processing failed", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("recurring processing finished", slog.Int("generated", count))
		return tracker.End(nil)
	}
}
