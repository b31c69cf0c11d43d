package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sage-invoice/sage/internal/platform/httpx"
)

// CategoryResolver maps a category slug to its id.
type CategoryResolver interface {
	ResolveID(ctx context.Context, slug string) (int64, error)
}

// Handler exposes the invoice JSON API.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	categories CategoryResolver
}

// NewHandler builds a Handler instance. categories may be nil, in which case
// the category filter accepts numeric ids only.
func NewHandler(logger *slog.Logger, service *Service, categories CategoryResolver) *Handler {
	return &Handler{logger: logger, service: service, categories: categories}
}

// MountRoutes registers the invoice, item, column and expense resources.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Post("/", h.createInvoice)
		r.Get("/{slug}", h.showInvoice)
		r.Put("/{slug}", h.updateInvoice)
		r.Delete("/{slug}", h.deleteInvoice)
		r.Post("/{slug}/status", h.setStatus)
	})
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.listItems)
		r.Post("/", h.createItem)
		r.Get("/{id}", h.showItem)
		r.Put("/{id}", h.updateItem)
		r.Delete("/{id}", h.deleteItem)
	})
	r.Route("/columns", func(r chi.Router) {
		r.Get("/", h.listColumns)
		r.Post("/", h.createColumn)
		r.Get("/{id}", h.showColumn)
		r.Put("/{id}", h.updateColumn)
		r.Delete("/{id}", h.deleteColumn)
	})
	r.Route("/expenses", func(r chi.Router) {
		r.Get("/", h.listExpenses)
		r.Get("/{id}", h.showExpense)
		r.Put("/{id}", h.updateExpense)
	})
}

type listResponse[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Warn(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}

// ============================================================================
// INVOICE HANDLERS
// ============================================================================

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseListFilters(r)
	if err != nil {
		h.fail(w, r, "list invoices", err)
		return
	}
	invoices, total, err := h.service.ListInvoices(r.Context(), filters)
	if err != nil {
		h.fail(w, r, "list invoices", err)
		return
	}
	if invoices == nil {
		invoices = []Invoice{}
	}
	httpx.JSON(w, http.StatusOK, listResponse[Invoice]{Count: total, Results: invoices})
}

func (h *Handler) parseListFilters(r *http.Request) (ListFilters, error) {
	q := r.URL.Query()
	filters := ListFilters{
		Search:   q.Get("search"),
		Status:   Status(q.Get("status")),
		Ordering: q.Get("ordering"),
	}
	if filters.Status != "" && !filters.Status.Valid() {
		return filters, fmt.Errorf("%w %q", ErrInvalidStatus, filters.Status)
	}
	if raw := q.Get("receipt"); raw != "" {
		receipt, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, fmt.Errorf("%w: receipt must be a boolean", httpx.ErrValidation)
		}
		filters.Receipt = &receipt
	}
	if raw := q.Get("category"); raw != "" {
		id, err := h.resolveCategory(r.Context(), raw)
		if err != nil {
			return filters, err
		}
		filters.CategoryID = &id
	}
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))
	filters.Offset, _ = strconv.Atoi(q.Get("offset"))
	return filters, nil
}

func (h *Handler) resolveCategory(ctx context.Context, raw string) (int64, error) {
	if h.categories != nil {
		return h.categories.ResolveID(ctx, raw)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unknown category %q", httpx.ErrValidation, raw)
	}
	return id, nil
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "decode invoice", err)
		return
	}
	inv, err := h.service.CreateInvoice(r.Context(), req)
	if err != nil {
		h.fail(w, r, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) showInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.GetInvoice(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "decode invoice", err)
		return
	}
	inv, err := h.service.UpdateInvoice(r.Context(), chi.URLParam(r, "slug"), req)
	if err != nil {
		h.fail(w, r, "update invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteInvoice(r.Context(), chi.URLParam(r, "slug")); err != nil {
		h.fail(w, r, "delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "decode status", err)
		return
	}
	inv, err := h.service.SetStatus(r.Context(), chi.URLParam(r, "slug"), req)
	if err != nil {
		h.fail(w, r, "set status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// ============================================================================
// ITEM HANDLERS
// ============================================================================

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := optionalID(r, "invoice")
	if err != nil {
		h.fail(w, r, "list items", err)
		return
	}
	items, err := h.service.ListItems(r.Context(), invoiceID)
	if err != nil {
		h.fail(w, r, "list items", err)
		return
	}
	if items == nil {
		items = []Item{}
	}
	httpx.JSON(w, http.StatusOK, listResponse[Item]{Count: len(items), Results: items})
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "decode item", err)
		return
	}
	item, err := h.service.CreateItem(r.Context(), req)
	if err != nil {
		h.fail(w, r, "create item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) showItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "get item", err)
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "update item", err)
		return
	}
	var req ItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "decode item", err)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, "update item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "delete item", err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		h.fail(w, r, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// COLUMN HANDLERS
// ============================================================================

func (h *Handler) listColumns(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := optionalID(r, "invoice")
	if err != nil {
		h.fail(w, r, "list columns", err)
		return
	}
	itemID, err := optionalID(r, "item")
	if err != nil {
		h.fail(w, r, "list columns", err)
		return
	}
	columns, err := h.service.ListColumns(r.Context(), ColumnFilters{InvoiceID: invoiceID, ItemID: itemID})
	if err != nil {
		h.fail(w, r, "list columns", err)
		return
	}
	if columns == nil {
		columns = []Column{}
	}
	httpx.JSON(w, http.StatusOK, listResponse[Column]{Count: len(columns), Results: columns})
}

func (h *Handler) createColumn(w http.ResponseWriter, r *http.Request) {
	var req CreateColumnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "decode column", err)
		return
	}
	col, err := h.service.CreateColumn(r.Context(), req)
	if err != nil {
		h.fail(w, r, "create column", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, col)
}

func (h *Handler) showColumn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "get column", err)
		return
	}
	col, err := h.service.GetColumn(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get column", err)
		return
	}
	httpx.JSON(w, http.StatusOK, col)
}

func (h *Handler) updateColumn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "update column", err)
		return
	}
	var req ColumnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "decode column", err)
		return
	}
	col, err := h.service.UpdateColumn(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, "update column", err)
		return
	}
	httpx.JSON(w, http.StatusOK, col)
}

func (h *Handler) deleteColumn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "delete column", err)
		return
	}
	if err := h.service.DeleteColumn(r.Context(), id); err != nil {
		h.fail(w, r, "delete column", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// EXPENSE HANDLERS
// ============================================================================

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	expenses, err := h.service.ListExpenses(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, r, "list expenses", err)
		return
	}
	if expenses == nil {
		expenses = []Expense{}
	}
	httpx.JSON(w, http.StatusOK, listResponse[Expense]{Count: len(expenses), Results: expenses})
}

func (h *Handler) showExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "get expense", err)
		return
	}
	expense, err := h.service.GetExpense(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get expense", err)
		return
	}
	httpx.JSON(w, http.StatusOK, expense)
}

func (h *Handler) updateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "update expense", err)
		return
	}
	var req RatesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "decode expense", err)
		return
	}
	expense, err := h.service.UpdateExpenseRates(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, "update expense", err)
		return
	}
	httpx.JSON(w, http.StatusOK, expense)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", httpx.ErrValidation)
	}
	return id, nil
}

func optionalID(r *http.Request, param string) (int64, error) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s id", httpx.ErrValidation, param)
	}
	return id, nil
}
