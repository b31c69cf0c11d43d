// Package rendering turns invoices into HTML documents through the
// discovered templates.
package rendering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sage-invoice/sage/internal/invoice"
	"github.com/sage-invoice/sage/internal/templates"
	"github.com/sage-invoice/sage/internal/view"
)

// InvoiceSource loads fully populated invoices.
type InvoiceSource interface {
	GetInvoice(ctx context.Context, slug string) (*invoice.Invoice, error)
	GetInvoiceByID(ctx context.Context, id int64) (*invoice.Invoice, error)
}

// TemplateResolver resolves an invoice template choice.
type TemplateResolver interface {
	Lookup(ctx context.Context, choice string, receipt bool) (templates.Template, error)
}

// RenderRecorder observes render latency.
type RenderRecorder interface {
	ObserveRender(receipt bool, elapsed time.Duration)
}

// Document is one rendered invoice.
type Document struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	RenderedHTML string `json:"rendered_html"`
}

// Service renders invoices.
type Service struct {
	invoices  InvoiceSource
	templates TemplateResolver
	engine    *view.Engine
	cache     *Cache
	links     Links
	recorder  RenderRecorder
	logger    *slog.Logger
}

// Options wires optional collaborators.
type Options struct {
	Cache    *Cache
	Links    Links
	Recorder RenderRecorder
	Logger   *slog.Logger
}

// NewService constructs a rendering service.
func NewService(invoices InvoiceSource, resolver TemplateResolver, engine *view.Engine, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = view.NewEngine()
	}
	return &Service{
		invoices:  invoices,
		templates: resolver,
		engine:    engine,
		cache:     opts.Cache,
		links:     opts.Links,
		recorder:  opts.Recorder,
		logger:    logger.With(slog.String("component", "rendering")),
	}
}

// Render renders a loaded invoice with the configured links.
func (s *Service) Render(ctx context.Context, inv *invoice.Invoice) (string, error) {
	return s.render(ctx, inv, s.links)
}

// RenderForBundle renders a loaded invoice with links into an export archive.
func (s *Service) RenderForBundle(ctx context.Context, inv *invoice.Invoice) (string, error) {
	links := s.links
	links.Bundle = true
	return s.render(ctx, inv, links)
}

func (s *Service) render(ctx context.Context, inv *invoice.Invoice, links Links) (string, error) {
	tpl, err := s.templates.Lookup(ctx, inv.TemplateChoice, inv.Receipt)
	if err != nil {
		s.logger.Error("template lookup failed",
			slog.Int64("invoice_id", inv.ID),
			slog.String("template_choice", inv.TemplateChoice),
			slog.Bool("receipt", inv.Receipt),
		)
		return "", err
	}
	key, err := s.cache.BuildKey(ctx, cacheParts(inv, tpl, links)...)
	if err != nil {
		s.logger.Warn("render cache key", slog.Any("error", err))
		return s.execute(inv, tpl, links)
	}
	return s.cache.Fetch(ctx, key, func(context.Context) (string, error) {
		return s.execute(inv, tpl, links)
	})
}

func (s *Service) execute(inv *invoice.Invoice, tpl templates.Template, links Links) (string, error) {
	start := time.Now()
	html, err := s.engine.Render(view.Source{ID: tpl.ID(), FS: tpl.FS, Path: tpl.Path}, BuildContext(inv, links))
	if err != nil {
		return "", fmt.Errorf("render invoice %d: %w", inv.ID, err)
	}
	if s.recorder != nil {
		s.recorder.ObserveRender(inv.Receipt, time.Since(start))
	}
	s.logger.Debug("invoice rendered", slog.Int64("invoice_id", inv.ID), slog.String("template", tpl.ID()))
	return html, nil
}

func cacheParts(inv *invoice.Invoice, tpl templates.Template, links Links) []string {
	mode := "web"
	if links.Bundle {
		mode = "bundle"
	}
	expense := "none"
	if e := inv.Expense; e != nil {
		expense = strconv.FormatInt(e.UpdatedAt.UnixNano(), 36) + "-" + e.TotalAmount.String()
	}
	return []string{
		strconv.FormatInt(inv.ID, 10),
		strconv.FormatInt(inv.UpdatedAt.UnixNano(), 36),
		expense,
		tpl.ID(),
		mode,
	}
}

// RenderBySlug loads and renders the invoice identified by slug.
func (s *Service) RenderBySlug(ctx context.Context, slug string) (*invoice.Invoice, string, error) {
	inv, err := s.invoices.GetInvoice(ctx, slug)
	if err != nil {
		return nil, "", err
	}
	html, err := s.Render(ctx, inv)
	if err != nil {
		return nil, "", err
	}
	return inv, html, nil
}

// RenderBatch renders the given invoices in order; ids that do not exist are
// skipped.
func (s *Service) RenderBatch(ctx context.Context, ids []int64) ([]Document, error) {
	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		inv, err := s.invoices.GetInvoiceByID(ctx, id)
		if errors.Is(err, invoice.ErrInvoiceNotFound) {
			s.logger.Info("batch render skipped missing invoice", slog.Int64("invoice_id", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		html, err := s.Render(ctx, inv)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: inv.ID, Title: inv.Title, Slug: inv.Slug, RenderedHTML: html})
	}
	return docs, nil
}

// Invalidate drops parsed templates and cached documents, for use after a
// template catalog refresh.
func (s *Service) Invalidate(ctx context.Context) error {
	s.engine.Reset()
	return s.cache.Bump(ctx)
}
