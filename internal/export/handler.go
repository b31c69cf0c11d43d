package export

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sage-invoice/sage/internal/platform/httpx"
	"github.com/sage-invoice/sage/internal/rendering"
)

// Handler serves downloads.
type Handler struct {
	logger  *slog.Logger
	bundler *Bundler
	pdf     *PDFExporter
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, bundler *Bundler, pdf *PDFExporter) *Handler {
	return &Handler{logger: logger, bundler: bundler, pdf: pdf}
}

// MountRoutes registers the download routes relative to /invoices.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/download", h.download)
	r.Get("/{slug}/pdf", h.exportPDF)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	ids, err := rendering.RequestedIDs(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var buf bytes.Buffer
	written, err := h.bundler.WriteZip(r.Context(), &buf, ids)
	if err != nil {
		h.logger.Error("build invoice archive", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if written == 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "none of the requested invoices exist")
		return
	}
	name := fmt.Sprintf("invoices-%s-%s.zip", time.Now().UTC().Format("20060102"), uuid.NewString()[:8])
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	inv, pdf, err := h.pdf.Export(r.Context(), slug)
	if err != nil {
		h.logger.Error("export pdf", slog.String("slug", slug), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+inv.Slug+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
