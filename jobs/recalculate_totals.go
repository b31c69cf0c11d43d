package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sage-invoice/sage/internal/jobs"
)

// TotalsRecalculator recomputes invoice totals.
type TotalsRecalculator interface {
	RecalculateTotals(ctx context.Context, invoiceID int64) error
}

// RecalculateTotalsJob handles TaskRecalculateTotals. Failures are logged and
// counted but never fail the task: recalculation is best effort.
type RecalculateTotalsJob struct {
	Totals  TotalsRecalculator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewRecalculateTotalsJob initialises the handler.
func NewRecalculateTotalsJob(totals TotalsRecalculator, logger *slog.Logger, metrics *jobmetrics.Metrics) *RecalculateTotalsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecalculateTotalsJob{Totals: totals, Logger: logger, Metrics: metrics}
}

// Handle executes the recalculation.
func (j *RecalculateTotalsJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Totals == nil {
		return errors.New("recalculate totals: handler not configured")
	}
	var payload RecalculateTotalsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.InvoiceID <= 0 {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskRecalculateTotals)
	if err := tracker.End(j.Totals.RecalculateTotals(ctx, payload.InvoiceID)); err != nil {
		j.Logger.Error("recalculate totals",
			slog.String("job", TaskRecalculateTotals),
			slog.Int64("invoice_id", payload.InvoiceID),
			slog.Any("error", err),
		)
		return nil
	}
	j.Logger.Debug("totals recalculated", slog.String("job", TaskRecalculateTotals), slog.Int64("invoice_id", payload.InvoiceID))
	return nil
}
