package web_test

import (
	"io/fs"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-invoice/sage/internal/invoice"
	"github.com/sage-invoice/sage/internal/rendering"
	"github.com/sage-invoice/sage/internal/view"
	"github.com/sage-invoice/sage/web"
)

func sampleInvoice() *invoice.Invoice {
	inv := &invoice.Invoice{
		ID:           1,
		Title:        "Website redesign",
		TrackingCode: "INV-20240901-1234",
		InvoiceDate:  time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		DueDate:      time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC),
		CustomerName: "Acme Corp",
		Contacts:     []string{"billing@acme.test", "5550100"},
		Status:       invoice.StatusUnpaid,
		Currency:     "EUR",
		Logo:         "logos/acme.png",
		Notes:        []invoice.Note{{Label: "Bank", Content: "IBAN DE00"}},
		Items: []invoice.Item{{
			Description: "Design. Build",
			Quantity:    2,
			UnitPrice:   decimal.RequireFromString("1500"),
			Columns:     []invoice.Column{{ColumnName: "Phase", Value: "One"}},
		}},
		Expense: &invoice.Expense{TaxPercentage: decimal.NewFromInt(10)},
	}
	for i := range inv.Items {
		inv.Items[i].Reprice()
	}
	inv.RecalculateTotals()
	return inv
}

func TestBundledTemplatesRender(t *testing.T) {
	engine := view.NewEngine()
	tplFS := web.TemplateFS()
	names, err := fs.Glob(tplFS, "*.html")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	data := rendering.BuildContext(sampleInvoice(), rendering.Links{MediaURL: "/media/", StaticURL: "/static"})
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			html, err := engine.Render(view.Source{ID: "embedded:" + name, FS: tplFS, Path: name}, data)
			require.NoError(t, err)
			assert.Contains(t, html, "INV-20240901-1234")
			assert.Contains(t, html, "3,300.00")
		})
	}
}

func TestQuotationTemplateContent(t *testing.T) {
	data := rendering.BuildContext(sampleInvoice(), rendering.Links{Bundle: true})
	html, err := view.NewEngine().Render(view.Source{ID: "q1", FS: web.TemplateFS(), Path: "quotation1.html"}, data)
	require.NoError(t, err)

	assert.Contains(t, html, `href="assets/css/style.css"`)
	assert.Contains(t, html, `src="images/1/logo.png"`)
	assert.Contains(t, html, "<th>Phase</th>")
	assert.Contains(t, html, "<td>One</td>")
	assert.Contains(t, html, "billing@acme.test")
	assert.Contains(t, html, "IBAN DE00")
	assert.Contains(t, html, "01 Sep 2024")
}

func TestStaticAssetsPresent(t *testing.T) {
	for _, name := range []string{"css/style.css", "css/print.css", "js/main.js"} {
		_, err := fs.Stat(web.StaticFS(), name)
		assert.NoError(t, err, name)
	}
}
