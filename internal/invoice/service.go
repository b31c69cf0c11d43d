package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sage-invoice/sage/internal/platform/db"
)

// TotalsScheduler arranges a totals recalculation for an invoice. Schedulers
// absorb their own failures; the caller's save has already committed.
type TotalsScheduler interface {
	ScheduleRecalculation(ctx context.Context, invoiceID int64)
}

// Service provides business logic for invoices and their parts.
type Service struct {
	repo      Repository
	tracking  *TrackingCodes
	validate  *validator.Validate
	logger    *slog.Logger
	scheduler TotalsScheduler
	now       func() time.Time
}

// NewService constructs an invoice service. Totals are recalculated inline
// after commit until SetScheduler installs another strategy.
func NewService(repo Repository, tracking *TrackingCodes, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if tracking == nil {
		tracking = NewTrackingCodes("INV")
	}
	s := &Service{
		repo:     repo,
		tracking: tracking,
		validate: NewValidator(),
		logger:   logger.With(slog.String("component", "invoice")),
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.scheduler = InlineTotals{Service: s}
	return s
}

// SetScheduler swaps the after-commit recalculation strategy.
func (s *Service) SetScheduler(scheduler TotalsScheduler) {
	if scheduler != nil {
		s.scheduler = scheduler
	}
}

// Validator exposes the request validator shared with the HTTP layer.
func (s *Service) Validator() *validator.Validate {
	return s.validate
}

func (s *Service) scheduleTotals(ctx context.Context, invoiceID int64) {
	db.AfterCommit(ctx, func(ctx context.Context) {
		s.scheduler.ScheduleRecalculation(ctx, invoiceID)
	})
}

// InlineTotals recalculates synchronously once the triggering transaction
// has committed, logging and swallowing failures.
type InlineTotals struct {
	Service *Service
}

// ScheduleRecalculation implements TotalsScheduler.
func (t InlineTotals) ScheduleRecalculation(ctx context.Context, invoiceID int64) {
	if err := t.Service.RecalculateTotals(context.WithoutCancel(ctx), invoiceID); err != nil {
		t.Service.logger.Error("recalculate totals",
			slog.Int64("invoice_id", invoiceID),
			slog.Any("error", err),
		)
	}
}

// ============================================================================
// INVOICE OPERATIONS
// ============================================================================

// withTrackingCode runs fn in a transaction after expanding requested into
// inv.TrackingCode. A generated code that collides with a stored one is
// regenerated and fn runs again in a fresh transaction, so fn must reset any
// state it assigns to inv.
func (s *Service) withTrackingCode(ctx context.Context, inv *Invoice, requested string, fn func(context.Context, TxRepository) error) error {
	for attempt := 1; ; attempt++ {
		inv.TrackingCode = s.tracking.Ensure(requested, inv.InvoiceDate)
		err := s.repo.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, ErrDuplicateTrackingCode) ||
			!s.tracking.Generates(requested) || attempt >= maxTrackingAttempts {
			return err
		}
		s.logger.Warn("generated tracking code taken, regenerating",
			slog.String("tracking_code", inv.TrackingCode),
			slog.Int("attempt", attempt),
		)
	}
}

// CreateInvoice stores a new invoice with its optional customer, rates and items.
func (s *Service) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	inv := req.toModel()
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	rates := req.rates().apply(Rates{})
	if err := ValidateRates(rates); err != nil {
		return nil, err
	}
	items := make([]*Item, 0, len(req.Items))
	for _, itemReq := range req.Items {
		it := itemReq.toModel(0)
		if err := it.Validate(); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	err := s.withTrackingCode(ctx, inv, req.TrackingCode, func(ctx context.Context, tx TxRepository) error {
		inv.Items, inv.CustomerID = nil, nil
		if inv.Customer != nil {
			inv.Customer.ID = 0
		}
		slug, err := uniqueSlug(Slugify(inv.Title), func(candidate string) (bool, error) {
			return tx.SlugExists(ctx, candidate, 0)
		})
		if err != nil {
			return fmt.Errorf("allocate slug: %w", err)
		}
		inv.Slug = slug
		if inv.Customer != nil {
			if err := tx.CreateCustomer(ctx, inv.Customer); err != nil {
				return fmt.Errorf("create customer: %w", err)
			}
			inv.CustomerID = &inv.Customer.ID
		}
		if err := tx.CreateInvoice(ctx, inv); err != nil {
			return err
		}
		if err := tx.UpdateExpenseRates(ctx, inv.ID, rates); err != nil {
			return fmt.Errorf("store rates: %w", err)
		}
		for i, it := range items {
			it.InvoiceID = inv.ID
			it.Columns = nil
			if err := tx.CreateItem(ctx, it); err != nil {
				return fmt.Errorf("create item: %w", err)
			}
			for _, colReq := range req.Items[i].Columns {
				col := colReq.toModel(inv.ID, it.ID)
				if err := tx.CreateColumn(ctx, col); err != nil {
					return fmt.Errorf("create column: %w", err)
				}
				it.Columns = append(it.Columns, *col)
			}
			inv.Items = append(inv.Items, *it)
		}
		s.scheduleTotals(ctx, inv.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	s.logger.Info("invoice created", slog.Int64("invoice_id", inv.ID), slog.String("slug", inv.Slug))
	return s.repo.LoadInvoice(ctx, inv.ID)
}

// UpdateInvoice replaces the editable fields of the invoice identified by slug.
func (s *Service) UpdateInvoice(ctx context.Context, slug string, req InvoiceRequest) (*Invoice, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetInvoiceBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	inv := req.toModel()
	inv.ID = existing.ID
	inv.CreatedAt = existing.CreatedAt
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	var customerID int64
	if inv.Customer != nil && existing.Customer != nil {
		customerID = existing.Customer.ID
	}

	body := func(ctx context.Context, tx TxRepository) error {
		if inv.Customer != nil {
			inv.Customer.ID = customerID
		}
		if err := tx.LockInvoice(ctx, inv.ID); err != nil {
			return err
		}
		inv.Slug = existing.Slug
		if inv.Title != existing.Title {
			newSlug, err := uniqueSlug(Slugify(inv.Title), func(candidate string) (bool, error) {
				return tx.SlugExists(ctx, candidate, inv.ID)
			})
			if err != nil {
				return fmt.Errorf("allocate slug: %w", err)
			}
			inv.Slug = newSlug
		}
		switch {
		case inv.Customer != nil && inv.Customer.ID > 0:
			if err := tx.UpdateCustomer(ctx, inv.Customer); err != nil {
				return fmt.Errorf("update customer: %w", err)
			}
			inv.CustomerID = &inv.Customer.ID
		case inv.Customer != nil:
			if err := tx.CreateCustomer(ctx, inv.Customer); err != nil {
				return fmt.Errorf("create customer: %w", err)
			}
			inv.CustomerID = &inv.Customer.ID
		default:
			inv.CustomerID = existing.CustomerID
		}
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		if rr := req.rates(); rr != (RatesRequest{}) {
			current, err := tx.GetExpenseByInvoice(ctx, inv.ID)
			if err != nil && !errors.Is(err, ErrExpenseNotFound) {
				return err
			}
			rates := rr.apply(current.Rates())
			if err := ValidateRates(rates); err != nil {
				return err
			}
			if err := tx.UpdateExpenseRates(ctx, inv.ID, rates); err != nil {
				return fmt.Errorf("store rates: %w", err)
			}
		}
		s.scheduleTotals(ctx, inv.ID)
		return nil
	}
	if req.TrackingCode == "" {
		inv.TrackingCode = existing.TrackingCode
		err = s.repo.WithTx(ctx, body)
	} else {
		err = s.withTrackingCode(ctx, inv, req.TrackingCode, body)
	}
	if err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	return s.repo.LoadInvoice(ctx, inv.ID)
}

// SetStatus moves the invoice to a new status.
func (s *Service) SetStatus(ctx context.Context, slug string, req StatusRequest) (*Invoice, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	inv, err := s.repo.GetInvoiceBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateInvoiceStatus(ctx, inv.ID, req.Status); err != nil {
			return err
		}
		s.scheduleTotals(ctx, inv.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	s.logger.Info("invoice status changed",
		slog.Int64("invoice_id", inv.ID),
		slog.String("from", string(inv.Status)),
		slog.String("to", string(req.Status)),
	)
	return s.repo.GetInvoice(ctx, inv.ID)
}

// DeleteInvoice removes an invoice; items, columns and expense cascade.
func (s *Service) DeleteInvoice(ctx context.Context, slug string) error {
	inv, err := s.repo.GetInvoiceBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteInvoice(ctx, inv.ID)
	})
}

// GetInvoice returns the full aggregate for slug.
func (s *Service) GetInvoice(ctx context.Context, slug string) (*Invoice, error) {
	inv, err := s.repo.GetInvoiceBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.repo.LoadInvoice(ctx, inv.ID)
}

// GetInvoiceByID returns the full aggregate for id.
func (s *Service) GetInvoiceByID(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.LoadInvoice(ctx, id)
}

// ListInvoices returns a filtered page of invoices and the total match count.
func (s *Service) ListInvoices(ctx context.Context, filters ListFilters) ([]Invoice, int, error) {
	if filters.Limit <= 0 || filters.Limit > 200 {
		filters.Limit = 50
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}
	return s.repo.ListInvoices(ctx, filters)
}

// SweepOverdue marks unpaid invoices whose due date is before asOf as overdue.
func (s *Service) SweepOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	var ids []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ids, err = tx.MarkOverdue(ctx, asOf)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sweep overdue: %w", err)
	}
	return ids, nil
}

// ============================================================================
// TOTALS
// ============================================================================

// RecalculateTotals recomputes and persists the expense of an invoice from
// its current items and rates.
func (s *Service) RecalculateTotals(ctx context.Context, invoiceID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockInvoice(ctx, invoiceID); err != nil {
			return err
		}
		inv, err := tx.LoadInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		expense := inv.RecalculateTotals()
		if err := tx.SaveExpenseTotals(ctx, expense); err != nil {
			return fmt.Errorf("save totals: %w", err)
		}
		s.logger.Debug("totals recalculated",
			slog.Int64("invoice_id", invoiceID),
			slog.String("total", expense.TotalAmount.StringFixed(moneyPlaces)),
		)
		return nil
	})
}

// ============================================================================
// ITEM OPERATIONS
// ============================================================================

// CreateItem adds an item (and its columns) to an invoice.
func (s *Service) CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	it := req.toModel(req.InvoiceID)
	if err := it.Validate(); err != nil {
		return nil, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.TouchInvoice(ctx, req.InvoiceID); err != nil {
			return err
		}
		if err := tx.CreateItem(ctx, it); err != nil {
			return err
		}
		for _, colReq := range req.Columns {
			col := colReq.toModel(it.InvoiceID, it.ID)
			if err := tx.CreateColumn(ctx, col); err != nil {
				return fmt.Errorf("create column: %w", err)
			}
			it.Columns = append(it.Columns, *col)
		}
		s.scheduleTotals(ctx, it.InvoiceID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return it, nil
}

// UpdateItem replaces the editable fields of an item and reprices it.
func (s *Service) UpdateItem(ctx context.Context, id int64, req ItemRequest) (*Item, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	it := req.toModel(existing.InvoiceID)
	it.ID = existing.ID
	it.CreatedAt = existing.CreatedAt
	if err := it.Validate(); err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.TouchInvoice(ctx, it.InvoiceID); err != nil {
			return err
		}
		if err := tx.UpdateItem(ctx, it); err != nil {
			return err
		}
		s.scheduleTotals(ctx, it.InvoiceID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return s.repo.GetItem(ctx, id)
}

// DeleteItem removes an item and its columns.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	existing, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteItem(ctx, id); err != nil {
			return err
		}
		if err := tx.TouchInvoice(ctx, existing.InvoiceID); err != nil {
			return err
		}
		s.scheduleTotals(ctx, existing.InvoiceID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, id int64) (*Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems returns the items of an invoice, or all items when invoiceID is 0.
func (s *Service) ListItems(ctx context.Context, invoiceID int64) ([]Item, error) {
	return s.repo.ListItems(ctx, invoiceID)
}

// ============================================================================
// COLUMN OPERATIONS
// ============================================================================

// CreateColumn attaches a custom column to an item.
func (s *Service) CreateColumn(ctx context.Context, req CreateColumnRequest) (*Column, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	item, err := s.repo.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	col := req.toModel(item.InvoiceID, item.ID)
	if err := col.Validate(); err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.TouchInvoice(ctx, col.InvoiceID); err != nil {
			return err
		}
		return tx.CreateColumn(ctx, col)
	})
	if err != nil {
		return nil, fmt.Errorf("create column: %w", err)
	}
	return col, nil
}

// UpdateColumn changes the name, value or priority of a column.
func (s *Service) UpdateColumn(ctx context.Context, id int64, req ColumnRequest) (*Column, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetColumn(ctx, id)
	if err != nil {
		return nil, err
	}
	col := req.toModel(existing.InvoiceID, existing.ItemID)
	col.ID = existing.ID
	if err := col.Validate(); err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.TouchInvoice(ctx, col.InvoiceID); err != nil {
			return err
		}
		return tx.UpdateColumn(ctx, col)
	})
	if err != nil {
		return nil, fmt.Errorf("update column: %w", err)
	}
	return s.repo.GetColumn(ctx, id)
}

// DeleteColumn removes a column.
func (s *Service) DeleteColumn(ctx context.Context, id int64) error {
	existing, err := s.repo.GetColumn(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteColumn(ctx, id); err != nil {
			return err
		}
		return tx.TouchInvoice(ctx, existing.InvoiceID)
	})
}

// GetColumn returns one column.
func (s *Service) GetColumn(ctx context.Context, id int64) (*Column, error) {
	return s.repo.GetColumn(ctx, id)
}

// ListColumns returns columns ordered by item and priority.
func (s *Service) ListColumns(ctx context.Context, filters ColumnFilters) ([]Column, error) {
	return s.repo.ListColumns(ctx, filters)
}

// ============================================================================
// EXPENSE OPERATIONS
// ============================================================================

// GetExpense returns one expense.
func (s *Service) GetExpense(ctx context.Context, id int64) (*Expense, error) {
	return s.repo.GetExpense(ctx, id)
}

// ListExpenses returns a page of expenses.
func (s *Service) ListExpenses(ctx context.Context, limit, offset int) ([]Expense, error) {
	return s.repo.ListExpenses(ctx, limit, offset)
}

// UpdateExpenseRates changes the percentages of an expense. Amounts follow
// through the after-commit recalculation.
func (s *Service) UpdateExpenseRates(ctx context.Context, id int64, req RatesRequest) (*Expense, error) {
	current, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	rates := req.apply(current.Rates())
	if err := ValidateRates(rates); err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.TouchInvoice(ctx, current.InvoiceID); err != nil {
			return err
		}
		if err := tx.UpdateExpenseRates(ctx, current.InvoiceID, rates); err != nil {
			return err
		}
		s.scheduleTotals(ctx, current.InvoiceID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	return s.repo.GetExpense(ctx, id)
}
