package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sage-invoice/sage/internal/jobs"
)

// OverdueSweeper moves unpaid invoices past due to overdue.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, asOf time.Time) ([]int64, error)
}

// OverdueSweepJob handles TaskOverdueSweep.
type OverdueSweepJob struct {
	Sweeper OverdueSweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOverdueSweepJob initialises the sweep handler.
func NewOverdueSweepJob(sweeper OverdueSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverdueSweepJob{
		Sweeper: sweeper,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep.
func (j *OverdueSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	var payload OverdueSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.clock()
	}
	tracker := j.Metrics.Track(TaskOverdueSweep)
	ids, err := j.Sweeper.SweepOverdue(ctx, asOf)
	if err := tracker.End(err); err != nil {
		j.Logger.Error("overdue sweep", slog.String("job", TaskOverdueSweep), slog.Any("error", err))
		return err
	}
	j.Metrics.AddOverdue(len(ids))
	j.Logger.Info("overdue sweep finished",
		slog.String("job", TaskOverdueSweep),
		slog.String("as_of", asOf.Format(time.DateOnly)),
		slog.Int("marked", len(ids)),
	)
	return nil
}
