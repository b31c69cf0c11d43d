package invoice

import (
	"fmt"

	"github.com/sage-invoice/sage/internal/platform/httpx"
)

var (
	ErrInvoiceNotFound  = fmt.Errorf("invoice %w", httpx.ErrNotFound)
	ErrItemNotFound     = fmt.Errorf("item %w", httpx.ErrNotFound)
	ErrColumnNotFound   = fmt.Errorf("column %w", httpx.ErrNotFound)
	ErrExpenseNotFound  = fmt.Errorf("expense %w", httpx.ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("customer %w", httpx.ErrNotFound)

	ErrDuplicateTrackingCode = fmt.Errorf("tracking code: %w", httpx.ErrDuplicate)

	ErrDatesRequired        = fmt.Errorf("%w: both invoice date and due date must be provided", httpx.ErrValidation)
	ErrDueBeforeInvoiceDate = fmt.Errorf("%w: due date must not be earlier than invoice date", httpx.ErrValidation)
	ErrContactRequired      = fmt.Errorf("%w: customer contact needs a phone or an email", httpx.ErrValidation)
	ErrInvalidStatus        = fmt.Errorf("%w: unknown status", httpx.ErrValidation)
	ErrInvalidCurrency      = fmt.Errorf("%w: unsupported currency", httpx.ErrValidation)
	ErrColumnItemMismatch   = fmt.Errorf("%w: column item belongs to another invoice", httpx.ErrValidation)
)
