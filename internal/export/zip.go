// Package export packages rendered invoices for download.
package export

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/sage-invoice/sage/internal/invoice"
	"github.com/sage-invoice/sage/internal/rendering"
)

// Renderer produces HTML documents for export.
type Renderer interface {
	RenderForBundle(ctx context.Context, inv *invoice.Invoice) (string, error)
}

// InvoiceLoader loads fully populated invoices.
type InvoiceLoader interface {
	GetInvoiceByID(ctx context.Context, id int64) (*invoice.Invoice, error)
}

// Bundler writes ZIP archives holding rendered invoices, the static assets
// they reference and their images.
type Bundler struct {
	invoices InvoiceLoader
	renderer Renderer
	static   fs.FS
	media    fs.FS
	logger   *slog.Logger
}

// NewBundler constructs a bundler. static is rooted at the asset directory
// (css/, js/); media is rooted at the media store.
func NewBundler(invoices InvoiceLoader, renderer Renderer, static, media fs.FS, logger *slog.Logger) *Bundler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bundler{
		invoices: invoices,
		renderer: renderer,
		static:   static,
		media:    media,
		logger:   logger.With(slog.String("component", "export")),
	}
}

// staticAssets are copied into assets/ in every bundle.
var staticAssets = []string{"css/style.css", "css/print.css", "js/main.js"}

// WriteZip renders the invoices identified by ids into w. Missing invoices
// are skipped; it returns the number of documents written.
func (b *Bundler) WriteZip(ctx context.Context, w io.Writer, ids []int64) (int, error) {
	zw := zip.NewWriter(w)
	written := 0
	for _, id := range ids {
		inv, err := b.invoices.GetInvoiceByID(ctx, id)
		if errors.Is(err, invoice.ErrInvoiceNotFound) {
			b.logger.Info("export skipped missing invoice", slog.Int64("invoice_id", id))
			continue
		}
		if err != nil {
			return written, err
		}
		html, err := b.renderer.RenderForBundle(ctx, inv)
		if err != nil {
			return written, err
		}
		if err := writeFile(zw, documentName(inv), []byte(html)); err != nil {
			return written, err
		}
		b.addImages(zw, inv)
		written++
	}
	if written > 0 {
		b.addStatic(zw)
	}
	if err := zw.Close(); err != nil {
		return written, fmt.Errorf("close archive: %w", err)
	}
	return written, nil
}

func documentName(inv *invoice.Invoice) string {
	name := inv.Slug
	if name == "" {
		name = "invoice-" + strconv.FormatInt(inv.ID, 10)
	}
	return name + ".html"
}

func (b *Bundler) addStatic(zw *zip.Writer) {
	if b.static == nil {
		return
	}
	for _, name := range staticAssets {
		data, err := fs.ReadFile(b.static, name)
		if err != nil {
			b.logger.Warn("static asset missing from bundle", slog.String("asset", name), slog.Any("error", err))
			continue
		}
		if err := writeFile(zw, path.Join("assets", name), data); err != nil {
			b.logger.Warn("write static asset", slog.String("asset", name), slog.Any("error", err))
		}
	}
}

func (b *Bundler) addImages(zw *zip.Writer, inv *invoice.Invoice) {
	if b.media == nil {
		return
	}
	dir := path.Join("images", strconv.FormatInt(inv.ID, 10))
	for _, img := range []struct{ ref, name string }{
		{inv.Logo, rendering.LogoFile},
		{inv.Signature, rendering.SignatureFile},
		{inv.Stamp, rendering.StampFile},
	} {
		if img.ref == "" || strings.Contains(img.ref, "://") {
			continue
		}
		data, err := fs.ReadFile(b.media, strings.TrimLeft(path.Clean(img.ref), "/"))
		if err != nil {
			b.logger.Warn("invoice image missing from bundle",
				slog.Int64("invoice_id", inv.ID),
				slog.String("image", img.ref),
				slog.Any("error", err),
			)
			continue
		}
		if err := writeFile(zw, path.Join(dir, img.name), data); err != nil {
			b.logger.Warn("write invoice image", slog.String("image", img.ref), slog.Any("error", err))
		}
	}
}

func writeFile(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
