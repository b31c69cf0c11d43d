package templates

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sage-invoice/sage/internal/platform/httpx"
)

// Invalidator drops state derived from the previous catalog.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Handler serves template choices.
type Handler struct {
	logger      *slog.Logger
	discovery   *Discovery
	invalidator Invalidator
}

// NewHandler builds a Handler instance. invalidator runs after every refresh
// and may be nil.
func NewHandler(logger *slog.Logger, discovery *Discovery, invalidator Invalidator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, discovery: discovery, invalidator: invalidator}
}

// MountRoutes registers /templates.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/templates", func(r chi.Router) {
		r.Post("/refresh", h.refresh)
		r.Get("/{kind}", h.choices)
	})
}

// IsReceiptKind interprets the kind path segment: a value containing "T"
// (as in T/F flags), "receipt" or "true" selects receipts.
func IsReceiptKind(kind string) bool {
	lower := strings.ToLower(kind)
	return strings.Contains(kind, "T") || lower == "receipt" || lower == "receipts" || lower == "true"
}

func (h *Handler) choices(w http.ResponseWriter, r *http.Request) {
	choices, err := h.discovery.Choices(r.Context(), IsReceiptKind(chi.URLParam(r, "kind")))
	if err != nil {
		h.logger.Error("template choices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, choices)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.discovery.Refresh(r.Context())
	if err != nil {
		h.logger.Error("template refresh", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if h.invalidator != nil {
		if err := h.invalidator.Invalidate(r.Context()); err != nil {
			h.logger.Warn("invalidate rendered documents", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]int{
		"invoices": len(catalog.Invoices),
		"receipts": len(catalog.Receipts),
	})
}
