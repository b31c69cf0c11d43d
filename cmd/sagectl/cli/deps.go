package cli

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/sage-invoice/sage/internal/app"
	"github.com/sage-invoice/sage/internal/invoice"
	"github.com/sage-invoice/sage/internal/platform/cache"
	"github.com/sage-invoice/sage/internal/platform/db"
	"github.com/sage-invoice/sage/migrations"
)

// DefaultDeps wires commands against the environment configuration.
func DefaultDeps() Deps {
	return Deps{
		Templates: func() (TemplateLister, error) {
			cfg, err := app.LoadConfig()
			if err != nil {
				return nil, err
			}
			return app.NewDiscovery(cfg, quietLogger()), nil
		},
		Invoices: openInvoices,
		Migrator: func() (Migrator, error) {
			cfg, err := app.LoadConfig()
			if err != nil {
				return nil, err
			}
			return dsnMigrator(cfg.PGDSN), nil
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type invoiceOps struct {
	*app.Services
}

func (o invoiceOps) RenderBySlug(ctx context.Context, slug string) (*invoice.Invoice, string, error) {
	return o.Renderer.RenderBySlug(ctx, slug)
}

func (o invoiceOps) RecalculateTotals(ctx context.Context, id int64) error {
	return o.Invoices.RecalculateTotals(ctx, id)
}

func (o invoiceOps) SweepOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	return o.Invoices.SweepOverdue(ctx, asOf)
}

func openInvoices(ctx context.Context) (InvoiceOps, func(), error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	// Commands act immediately; never hand totals to the worker.
	cfg.TotalsMode = app.TotalsModeInline
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, "sagectl")
	if err != nil {
		return nil, nil, err
	}
	deps := app.ServiceDeps{Config: cfg, Logger: logger, Pool: pool}
	redisClient, err := cache.New(ctx, app.CacheOptions(cfg))
	if err != nil {
		logger.Debug("redis unavailable, rendering uncached", slog.Any("error", err))
	} else {
		deps.Redis = redisClient
	}
	services := app.BuildServices(deps)
	done := func() {
		services.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		pool.Close()
	}
	return invoiceOps{services}, done, nil
}

type dsnMigrator string

func (m dsnMigrator) Up() error {
	return db.MigrateUp(string(m), migrations.FS)
}

func (m dsnMigrator) Down(steps int) error {
	return db.MigrateDown(string(m), migrations.FS, steps)
}

func (m dsnMigrator) Version() (uint, bool, error) {
	return db.MigrationVersion(string(m), migrations.FS)
}
