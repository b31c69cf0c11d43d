package export

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/sage-invoice/sage/internal/invoice"
	"github.com/sage-invoice/sage/report"
)

// Converter turns HTML into PDF.
type Converter interface {
	RenderHTML(ctx context.Context, html string, assets ...report.Asset) ([]byte, error)
}

// HTMLRenderer renders an invoice for on-screen use.
type HTMLRenderer interface {
	RenderBySlug(ctx context.Context, slug string) (*invoice.Invoice, string, error)
}

// PDFExporter renders an invoice and converts it through Gotenberg.
type PDFExporter struct {
	renderer  HTMLRenderer
	converter Converter
	static    fs.FS
}

// NewPDFExporter constructs an exporter. Stylesheets from static are uploaded
// with the document.
func NewPDFExporter(renderer HTMLRenderer, converter Converter, static fs.FS) *PDFExporter {
	return &PDFExporter{renderer: renderer, converter: converter, static: static}
}

// Export returns the invoice identified by slug as PDF.
func (p *PDFExporter) Export(ctx context.Context, slug string) (*invoice.Invoice, []byte, error) {
	inv, html, err := p.renderer.RenderBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	var assets []report.Asset
	if p.static != nil {
		if css, err := fs.ReadFile(p.static, "css/print.css"); err == nil {
			assets = append(assets, report.Asset{Name: "print.css", Data: css})
		}
	}
	pdf, err := p.converter.RenderHTML(ctx, html, assets...)
	if err != nil {
		return nil, nil, fmt.Errorf("convert invoice %d: %w", inv.ID, err)
	}
	return inv, pdf, nil
}
