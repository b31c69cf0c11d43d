package rendering

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-invoice/sage/internal/invoice"
	"github.com/sage-invoice/sage/internal/platform/httpx"
	"github.com/sage-invoice/sage/internal/templates"
	"github.com/sage-invoice/sage/internal/view"
)

type fakeInvoices map[int64]*invoice.Invoice

func (f fakeInvoices) GetInvoice(ctx context.Context, slug string) (*invoice.Invoice, error) {
	for _, inv := range f {
		if inv.Slug == slug {
			return inv, nil
		}
	}
	return nil, invoice.ErrInvoiceNotFound
}

func (f fakeInvoices) GetInvoiceByID(ctx context.Context, id int64) (*invoice.Invoice, error) {
	inv, ok := f[id]
	if !ok {
		return nil, invoice.ErrInvoiceNotFound
	}
	return inv, nil
}

type countingRecorder struct {
	hits, misses, renders int
}

func (c *countingRecorder) RecordCache(hit bool) {
	if hit {
		c.hits++
		return
	}
	c.misses++
}

func (c *countingRecorder) ObserveRender(bool, time.Duration) { c.renders++ }

var docTemplates = fstest.MapFS{
	"quotation1.html": {Data: []byte(`<h1>{{.Title}}</h1>{{range .Items}}<tr><td>{{.Description}}</td>` +
		`{{$row := .}}{{range $.CustomColumns}}<td>{{get_item $row.CustomData .}}</td>{{end}}</tr>{{end}}` +
		`<p class="total">{{money .GrandTotal}}</p><p>{{.CustomerEmail}}|{{.CustomerPhone}}</p>`)},
	"receipt1.html": {Data: []byte(`<h1>Receipt {{.TrackingCode}}</h1>`)},
}

func sampleInvoice() *invoice.Invoice {
	return &invoice.Invoice{
		ID:             1,
		Title:          "Website Build",
		Slug:           "website-build",
		TrackingCode:   "INV-20240901-1234",
		TemplateChoice: "1",
		Contacts:       []string{"+1 555", "5551234567", "ap@globex.test", "other@globex.test"},
		Logo:           "logos/globex.png",
		UpdatedAt:      time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC),
		Items: []invoice.Item{
			{ID: 1, Description: "Design", Quantity: 2, UnitPrice: decimal.NewFromInt(100), TotalPrice: decimal.NewFromInt(200),
				Columns: []invoice.Column{{ColumnName: "SKU", Value: "D-1", Priority: 1}, {ColumnName: "Warranty", Value: "1y", Priority: 2}}},
			{ID: 2, Description: "Support", Quantity: 1, UnitPrice: decimal.NewFromInt(50), TotalPrice: decimal.NewFromInt(50),
				Columns: []invoice.Column{{ColumnName: "Hours", Value: "4", Priority: 0}}},
		},
		Expense: &invoice.Expense{
			Subtotal:      decimal.RequireFromString("250.00"),
			TaxPercentage: decimal.NewFromInt(10),
			TaxAmount:     decimal.RequireFromString("25.00"),
			TotalAmount:   decimal.RequireFromString("262.50"),
		},
	}
}

func newTestRenderer(t *testing.T, invoices fakeInvoices, cache *Cache, rec *countingRecorder) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	discovery := templates.NewDiscovery(templates.Config{InvoicePrefix: "quotation", ReceiptPrefix: "receipt", Ext: ".html"},
		logger, templates.Source{Name: "test", FS: docTemplates})
	opts := Options{
		Cache:  cache,
		Links:  Links{MediaURL: "/media", StaticURL: "/static"},
		Logger: logger,
	}
	if rec != nil {
		opts.Recorder = rec
	}
	return NewService(invoices, discovery, view.NewEngine(), opts)
}

func TestBuildContext(t *testing.T) {
	ctx := BuildContext(sampleInvoice(), Links{MediaURL: "/media/"})

	assert.Equal(t, "Website Build", ctx.Title)
	assert.Equal(t, []string{"SKU", "Warranty", "Hours"}, ctx.CustomColumns)
	require.Len(t, ctx.Items, 2)
	assert.Equal(t, map[string]string{"SKU": "D-1", "Warranty": "1y"}, ctx.Items[0].CustomData)
	assert.Equal(t, "ap@globex.test", ctx.CustomerEmail)
	assert.Equal(t, "5551234567", ctx.CustomerPhone)
	assert.Equal(t, "262.50", ctx.GrandTotal.StringFixed(2))
	assert.Equal(t, "/media/logos/globex.png", ctx.LogoURL)
	assert.Empty(t, ctx.StampURL)
}

func TestBuildContextPrefersStructuredContact(t *testing.T) {
	inv := sampleInvoice()
	inv.Customer = &invoice.CustomerProfile{Name: "Globex", Contact: invoice.Contact{Email: "billing@globex.test"}}

	ctx := BuildContext(inv, Links{})
	assert.Equal(t, "billing@globex.test", ctx.CustomerEmail)
	assert.Empty(t, ctx.CustomerPhone)
}

func TestBuildContextBundleLinks(t *testing.T) {
	ctx := BuildContext(sampleInvoice(), Links{MediaURL: "/media", StaticURL: "/static", Bundle: true})
	assert.Equal(t, "images/1/logo.png", ctx.LogoURL)
	assert.Equal(t, "assets", ctx.AssetsURL)
}

func TestRenderUsesResolvedTemplate(t *testing.T) {
	svc := newTestRenderer(t, fakeInvoices{1: sampleInvoice()}, nil, nil)

	_, html, err := svc.RenderBySlug(context.Background(), "website-build")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Website Build</h1>")
	assert.Contains(t, html, "<td>Design</td><td>D-1</td><td>1y</td><td></td>")
	assert.Contains(t, html, `<p class="total">262.50</p>`)
	assert.Contains(t, html, "ap@globex.test|5551234567")
}

func TestRenderReceiptTemplate(t *testing.T) {
	inv := sampleInvoice()
	inv.Receipt = true
	svc := newTestRenderer(t, fakeInvoices{1: inv}, nil, nil)

	html, err := svc.Render(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Receipt INV-20240901-1234</h1>", html)
}

func TestRenderMissingTemplateFails(t *testing.T) {
	inv := sampleInvoice()
	inv.TemplateChoice = "9"
	svc := newTestRenderer(t, fakeInvoices{1: inv}, nil, nil)

	html, err := svc.Render(context.Background(), inv)
	require.ErrorIs(t, err, templates.ErrTemplateNotFound)
	assert.Contains(t, err.Error(), `"9"`)
	assert.Empty(t, html)
}

func TestRenderBatchSkipsMissingInvoices(t *testing.T) {
	second := sampleInvoice()
	second.ID, second.Title, second.Slug = 3, "Hosting", "hosting"
	svc := newTestRenderer(t, fakeInvoices{1: sampleInvoice(), 3: second}, nil, nil)

	docs, err := svc.RenderBatch(context.Background(), []int64{3, 2, 1})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(3), docs[0].ID)
	assert.Equal(t, int64(1), docs[1].ID)
	assert.Contains(t, docs[0].RenderedHTML, "Hosting")
}

func TestRenderCachesUntilInvoiceChanges(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rec := &countingRecorder{}
	inv := sampleInvoice()
	svc := newTestRenderer(t, fakeInvoices{1: inv}, NewCache(client, time.Minute, rec), rec)
	ctx := context.Background()

	first, err := svc.Render(ctx, inv)
	require.NoError(t, err)
	second, err := svc.Render(ctx, inv)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
	assert.Equal(t, 1, rec.renders)

	inv.Title = "Website Rebuild"
	inv.UpdatedAt = inv.UpdatedAt.Add(time.Second)
	third, err := svc.Render(ctx, inv)
	require.NoError(t, err)
	assert.Contains(t, third, "Website Rebuild")
	assert.Equal(t, 2, rec.renders)

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.Render(ctx, inv)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.renders, "version bump forces a re-render")
}

func TestCacheFetchWithoutClient(t *testing.T) {
	var cache *Cache
	key, err := cache.BuildKey(context.Background(), "1", "x")
	require.NoError(t, err)
	assert.Equal(t, "render:1:x", key)

	html, err := cache.Fetch(context.Background(), key, func(context.Context) (string, error) { return "doc", nil })
	require.NoError(t, err)
	assert.Equal(t, "doc", html)
}

func TestHandlerRoutes(t *testing.T) {
	svc := newTestRenderer(t, fakeInvoices{1: sampleInvoice()}, nil, nil)
	r := chi.NewRouter()
	r.Route("/invoices", NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices/website-build", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices/render?invoice_ids=1,5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Invoices []Document `json:"invoices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Invoices, 1)
	assert.Equal(t, "Website Build", body.Invoices[0].Title)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices/render", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, http.StatusNotFound, problem.Status)
}
