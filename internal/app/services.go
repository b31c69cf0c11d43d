package app

import (
	"context"
	"io/fs"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sage-invoice/sage/internal/category"
	"github.com/sage-invoice/sage/internal/export"
	"github.com/sage-invoice/sage/internal/invoice"
	"github.com/sage-invoice/sage/internal/observability"
	"github.com/sage-invoice/sage/internal/platform/cache"
	"github.com/sage-invoice/sage/internal/rendering"
	"github.com/sage-invoice/sage/internal/templates"
	"github.com/sage-invoice/sage/internal/view"
	"github.com/sage-invoice/sage/jobs"
	"github.com/sage-invoice/sage/report"
	"github.com/sage-invoice/sage/web"
)

// Services holds the domain services shared by the server and the CLI.
type Services struct {
	Invoices   *invoice.Service
	Categories *category.Service
	Templates  *templates.Discovery
	Engine     *view.Engine
	Cache      *rendering.Cache
	Renderer   *rendering.Service
	Bundler    *export.Bundler
	PDF        *export.PDFExporter
	Gotenberg  *report.Client
	Static     fs.FS
	Media      fs.FS

	closers []func() error
}

// ServiceDeps are the connections services are built on. Redis and Metrics
// may be nil; rendering then runs uncached and unobserved.
type ServiceDeps struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
}

// TemplateSources lists the bundled templates followed by TEMPLATE_DIR, so
// custom files override bundled ones with the same key.
func TemplateSources(cfg *Config) []templates.Source {
	sources := []templates.Source{{Name: "bundled", FS: web.TemplateFS()}}
	if cfg != nil && cfg.TemplateDir != "" {
		sources = append(sources, templates.Source{Name: "custom", FS: os.DirFS(cfg.TemplateDir)})
	}
	return sources
}

// NewDiscovery builds template discovery from configuration.
func NewDiscovery(cfg *Config, logger *slog.Logger) *templates.Discovery {
	return templates.NewDiscovery(templates.Config{
		InvoicePrefix: cfg.TemplateInvoicePrefix,
		ReceiptPrefix: cfg.TemplateReceiptPrefix,
		Ext:           cfg.TemplateExt,
	}, logger, TemplateSources(cfg)...)
}

// BuildServices wires the domain services. In queue mode totals
// recalculation is handed to the worker, with inline recalculation as the
// fallback when enqueueing fails.
func BuildServices(deps ServiceDeps) *Services {
	cfg, logger := deps.Config, deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Services{
		Static: web.StaticFS(),
		Media:  os.DirFS(cfg.MediaDir),
	}

	s.Invoices = invoice.NewService(invoice.NewRepository(deps.Pool), invoice.NewTrackingCodes(cfg.TrackingCodePrefix), logger)
	if cfg.QueueTotals() {
		client := jobs.NewClient(RedisOpt(cfg))
		s.Invoices.SetScheduler(jobs.NewTotalsEnqueuer(client, invoice.InlineTotals{Service: s.Invoices}, logger))
		s.closers = append(s.closers, client.Close)
	}
	s.Categories = category.NewService(category.NewRepository(deps.Pool), logger)

	s.Templates = NewDiscovery(cfg, logger)
	s.Engine = view.NewEngine()

	var cacheRecorder rendering.CacheRecorder
	var renderRecorder rendering.RenderRecorder
	if deps.Metrics != nil {
		cacheRecorder, renderRecorder = deps.Metrics, deps.Metrics
	}
	if deps.Redis != nil {
		s.Cache = rendering.NewCache(deps.Redis, cfg.RenderCacheTTL, cacheRecorder)
	}
	s.Renderer = rendering.NewService(s.Invoices, s.Templates, s.Engine, rendering.Options{
		Cache:    s.Cache,
		Links:    rendering.Links{MediaURL: cfg.MediaURL, StaticURL: "/static"},
		Recorder: renderRecorder,
		Logger:   logger,
	})

	s.Gotenberg = report.NewClient(cfg.GotenbergURL)
	s.Bundler = export.NewBundler(s.Invoices, s.Renderer, s.Static, s.Media, logger)
	s.PDF = export.NewPDFExporter(s.Renderer, s.Gotenberg, s.Static)
	return s
}

// Close releases resources opened by BuildServices.
func (s *Services) Close() {
	for _, fn := range s.closers {
		_ = fn()
	}
}

// ListenForInvalidation resets parsed templates and rescans template
// sources whenever an instance bumps the render cache, until ctx is done.
func (s *Services) ListenForInvalidation(ctx context.Context, logger *slog.Logger) error {
	if s.Cache == nil {
		return nil
	}
	return s.Cache.ListenForInvalidation(ctx, func(version int64) {
		s.Engine.Reset()
		if _, err := s.Templates.Refresh(ctx); err != nil {
			logger.Warn("refresh templates after bump", slog.Any("error", err))
		}
		logger.Debug("render cache bumped", slog.Int64("version", version))
	})
}

// RedisOpt returns the Asynq connection options for cfg.
func RedisOpt(cfg *Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

// CacheOptions returns the render cache connection options for cfg.
func CacheOptions(cfg *Config) cache.Options {
	return cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}
