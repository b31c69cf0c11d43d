package rendering

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sage-invoice/sage/internal/invoice"
	"github.com/sage-invoice/sage/internal/platform/httpx"
)

// Handler serves rendered invoices.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the document routes relative to /invoices.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/render", h.renderBatch)
	r.Get("/{slug}", h.show)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	_, html, err := h.service.RenderBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.logger.Warn("render invoice", slog.String("slug", chi.URLParam(r, "slug")), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.HTML(w, http.StatusOK, html)
}

func (h *Handler) renderBatch(w http.ResponseWriter, r *http.Request) {
	ids, err := RequestedIDs(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	docs, err := h.service.RenderBatch(r.Context(), ids)
	if err != nil {
		h.logger.Error("batch render", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": docs})
}

// RequestedIDs reads the invoice_ids query parameter and requires at least
// one id.
func RequestedIDs(r *http.Request) ([]int64, error) {
	ids, err := invoice.ParseIDList(r.URL.Query().Get("invoice_ids"))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no invoice ids provided", httpx.ErrValidation)
	}
	return ids, nil
}
