package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sage-invoice/sage/internal/app"
	"github.com/sage-invoice/sage/internal/category"
	"github.com/sage-invoice/sage/internal/export"
	"github.com/sage-invoice/sage/internal/invoice"
	"github.com/sage-invoice/sage/internal/observability"
	"github.com/sage-invoice/sage/internal/platform/cache"
	"github.com/sage-invoice/sage/internal/platform/db"
	"github.com/sage-invoice/sage/internal/rendering"
	"github.com/sage-invoice/sage/internal/templates"
	"github.com/sage-invoice/sage/jobs"
	"github.com/sage-invoice/sage/migrations"
	"github.com/sage-invoice/sage/report"
)

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

	if cfg.MigrateOnStart {
		if err := db.MigrateUp(cfg.PGDSN, migrations.FS); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN, "sage")
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, app.CacheOptions(cfg))
	if err != nil {
		// Rendering runs uncached without Redis.
		logger.Warn("redis unavailable, render cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	services := app.BuildServices(app.ServiceDeps{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: metrics,
	})
	defer services.Close()

	if _, err := services.Templates.Refresh(ctx); err != nil {
		logger.Error("scan templates", slog.Any("error", err))
		os.Exit(1)
	}
	if err := services.ListenForInvalidation(ctx, logger); err != nil {
		logger.Warn("render invalidation listener", slog.Any("error", err))
	}

	categoryHandler := category.NewHandler(logger, services.Categories)
	invoiceHandler := invoice.NewHandler(logger, services.Invoices, services.Categories)

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(app.RedisOpt(cfg))
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		InvoiceHandler:   invoiceHandler,
		CategoryHandler:  categoryHandler,
		TemplatesHandler: templates.NewHandler(logger, services.Templates, services.Renderer),
		RenderHandler:    rendering.NewHandler(logger, services.Renderer),
		ExportHandler:    export.NewHandler(logger, services.Bundler, services.PDF),
		ReportHandler:    report.NewHandler(services.Gotenberg, logger),
		JobHandler:       jobHandler,
		Static:           services.Static,
		Media:            services.Media,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("totals_mode", cfg.TotalsMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
