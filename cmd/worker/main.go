package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sage-invoice/sage/internal/app"
	"github.com/sage-invoice/sage/internal/invoice"
	jobmetrics "github.com/sage-invoice/sage/internal/jobs"
	"github.com/sage-invoice/sage/internal/platform/db"
	"github.com/sage-invoice/sage/jobs"
)

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

	pool, err := db.New(ctx, cfg.PGDSN, "sage-worker")
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	invoiceService := invoice.NewService(invoice.NewRepository(pool), invoice.NewTrackingCodes(cfg.TrackingCodePrefix), logger)
	metrics := jobmetrics.NewMetrics(nil)

	recalcJob := jobs.NewRecalculateTotalsJob(invoiceService, logger, metrics)
	sweepJob := jobs.NewOverdueSweepJob(invoiceService, logger, metrics)

	// A zero date makes every scheduled sweep use the time it runs.
	sweepTask, err := jobs.NewOverdueSweepTask(time.Time{})
	if err != nil {
		logger.Error("build overdue sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	var cron []jobs.CronRegistration
	if cfg.OverdueSweepCron != "" {
		cron = append(cron, jobs.CronRegistration{Spec: cfg.OverdueSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: app.RedisOpt(cfg),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRecalculateTotals, Handler: recalcJob.Handle},
			{Type: jobs.TaskOverdueSweep, Handler: sweepJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
