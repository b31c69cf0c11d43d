package jobs

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

var totalsNamespace = uuid.MustParse("9b4d3c1e-6a52-4f0e-9d37-2c8a1f5b7e60")

// TaskEnqueuer submits tasks. *asynq.Client satisfies it.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RecalculationScheduler is the inline fallback used when enqueueing fails.
type RecalculationScheduler interface {
	ScheduleRecalculation(ctx context.Context, invoiceID int64)
}

// TotalsEnqueuer schedules totals recalculations through the queue.
// Requests for one invoice within the same second share a task id and run
// once that second has passed, so the task sees every commit of the window.
type TotalsEnqueuer struct {
	client   TaskEnqueuer
	fallback RecalculationScheduler
	logger   *slog.Logger
	now      func() time.Time
}

// NewTotalsEnqueuer constructs the queue scheduler. fallback may be nil.
func NewTotalsEnqueuer(client TaskEnqueuer, fallback RecalculationScheduler, logger *slog.Logger) *TotalsEnqueuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TotalsEnqueuer{client: client, fallback: fallback, logger: logger, now: time.Now}
}

// TotalsTaskID derives the task id for an invoice and scheduling window.
func TotalsTaskID(invoiceID int64, window time.Time) string {
	name := strconv.FormatInt(invoiceID, 10) + "@" + strconv.FormatInt(window.Unix(), 10)
	return uuid.NewSHA1(totalsNamespace, []byte(name)).String()
}

// ScheduleRecalculation implements invoice.TotalsScheduler.
func (e *TotalsEnqueuer) ScheduleRecalculation(ctx context.Context, invoiceID int64) {
	task, err := NewRecalculateTotalsTask(invoiceID)
	if err != nil {
		e.logger.Error("build totals task", slog.Int64("invoice_id", invoiceID), slog.Any("error", err))
		return
	}
	now := e.now()
	window := now.Truncate(time.Second)
	_, err = e.client.EnqueueContext(context.WithoutCancel(ctx), task,
		asynq.TaskID(TotalsTaskID(invoiceID, window)),
		asynq.ProcessIn(window.Add(time.Second).Sub(now)),
	)
	switch {
	case err == nil:
		e.logger.Debug("totals recalculation enqueued", slog.Int64("invoice_id", invoiceID))
	case errors.Is(err, asynq.ErrTaskIDConflict):
		e.logger.Debug("totals recalculation already pending", slog.Int64("invoice_id", invoiceID))
	default:
		e.logger.Warn("enqueue totals recalculation", slog.Int64("invoice_id", invoiceID), slog.Any("error", err))
		if e.fallback != nil {
			e.fallback.ScheduleRecalculation(ctx, invoiceID)
		}
	}
}
