package app

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sage-invoice/sage/internal/category"
	"github.com/sage-invoice/sage/internal/export"
	"github.com/sage-invoice/sage/internal/invoice"
	"github.com/sage-invoice/sage/internal/observability"
	"github.com/sage-invoice/sage/internal/rendering"
	"github.com/sage-invoice/sage/internal/templates"
	"github.com/sage-invoice/sage/jobs"
	"github.com/sage-invoice/sage/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	InvoiceHandler   *invoice.Handler
	CategoryHandler  *category.Handler
	TemplatesHandler *templates.Handler
	RenderHandler    *rendering.Handler
	ExportHandler    *export.Handler
	ReportHandler    *report.Handler
	JobHandler       *jobs.Handler

	Static  fs.FS
	Media   fs.FS
	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Sage defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.InvoiceHandler != nil {
			params.InvoiceHandler.MountRoutes(r)
		}
		if params.CategoryHandler != nil {
			params.CategoryHandler.MountRoutes(r)
		}
		if params.TemplatesHandler != nil {
			params.TemplatesHandler.MountRoutes(r)
		}
	})

	// Rendering and export share the /invoices prefix; chi allows a single
	// Route per pattern, so both mount into one subrouter.
	if params.RenderHandler != nil || params.ExportHandler != nil {
		r.Route("/invoices", func(r chi.Router) {
			if params.ExportHandler != nil {
				params.ExportHandler.MountRoutes(r)
			}
			if params.RenderHandler != nil {
				params.RenderHandler.MountRoutes(r)
			}
		})
	}

	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.Static != nil {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(params.Static)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}
	if params.Media != nil {
		prefix := mediaPrefix(params.Config)
		fileServer := http.StripPrefix(prefix, http.FileServer(http.FS(params.Media)))
		r.Handle(prefix+"*", staticCacheHandler(fileServer))
	}

	return r
}

func mediaPrefix(cfg *Config) string {
	prefix := "/media/"
	if cfg != nil && strings.HasPrefix(cfg.MediaURL, "/") {
		prefix = cfg.MediaURL
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Assets are cached for 1 hour in the browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
