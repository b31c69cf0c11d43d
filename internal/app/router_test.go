package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-invoice/sage/internal/export"
	"github.com/sage-invoice/sage/internal/invoice"
	"github.com/sage-invoice/sage/internal/observability"
	"github.com/sage-invoice/sage/internal/rendering"
	"github.com/sage-invoice/sage/internal/templates"
	"github.com/sage-invoice/sage/jobs"
)

type noInvoices struct{}

func (noInvoices) GetInvoice(context.Context, string) (*invoice.Invoice, error) {
	return nil, invoice.ErrInvoiceNotFound
}

func (noInvoices) GetInvoiceByID(context.Context, int64) (*invoice.Invoice, error) {
	return nil, invoice.ErrInvoiceNotFound
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := LoadConfig()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	discovery := templates.NewDiscovery(templates.Config{
		InvoicePrefix: cfg.TemplateInvoicePrefix,
		ReceiptPrefix: cfg.TemplateReceiptPrefix,
		Ext:           cfg.TemplateExt,
	}, logger)
	renderer := rendering.NewService(noInvoices{}, discovery, nil, rendering.Options{Logger: logger})
	bundler := export.NewBundler(noInvoices{}, renderer, fstest.MapFS{}, fstest.MapFS{}, logger)

	return NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		TemplatesHandler: templates.NewHandler(logger, discovery, renderer),
		RenderHandler:    rendering.NewHandler(logger, renderer),
		ExportHandler:    export.NewHandler(logger, bundler, nil),
		JobHandler:       jobs.NewHandler(nil, logger),
		Static: fstest.MapFS{
			"css/style.css": {Data: []byte("body{}")},
		},
		Media: fstest.MapFS{
			"images/1/logo.png": {Data: []byte("png")},
		},
		Metrics: observability.NewMetrics(),
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouterHealthAndHeaders(t *testing.T) {
	router := newTestRouter(t)

	rec := get(t, router, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Ratelimit-Limit"))

	rec = get(t, router, "/jobs/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sage_http_requests_total")
}

func TestRouterInvoiceDocumentRoutes(t *testing.T) {
	router := newTestRouter(t)

	assert.Equal(t, http.StatusNotFound, get(t, router, "/invoices/missing").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/invoices/render").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/invoices/download").Code)
	assert.Equal(t, http.StatusNotFound, get(t, router, "/invoices/download?invoice_ids=1,2").Code)
}

func TestRouterTemplateChoices(t *testing.T) {
	router := newTestRouter(t)

	rec := get(t, router, "/api/templates/invoice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No Templates Available")
}

func TestRouterServesAssets(t *testing.T) {
	router := newTestRouter(t)

	rec := get(t, router, "/static/css/style.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "body{}", rec.Body.String())

	rec = get(t, router, "/media/images/1/logo.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())
}

func TestMediaPrefix(t *testing.T) {
	assert.Equal(t, "/media/", mediaPrefix(nil))
	assert.Equal(t, "/uploads/", mediaPrefix(&Config{MediaURL: "/uploads"}))
	assert.Equal(t, "/media/", mediaPrefix(&Config{MediaURL: "https://cdn.example.com/media/"}))
}
