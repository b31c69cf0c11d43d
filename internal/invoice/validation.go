package invoice

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sage-invoice/sage/internal/platform/httpx"
)

var (
	phonePattern  = regexp.MustCompile(`^\d{10,15}$`)
	digitsPattern = regexp.MustCompile(`^\d+$`)
	fieldChecker  = validator.New()
)

// NewValidator returns a validator reporting fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate enforces the invoice invariants that do not depend on storage.
func (inv *Invoice) Validate() error {
	if strings.TrimSpace(inv.Title) == "" {
		return fmt.Errorf("%w: title is required", httpx.ErrValidation)
	}
	if strings.TrimSpace(inv.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", httpx.ErrValidation)
	}
	if err := ValidateDates(inv.InvoiceDate, inv.DueDate); err != nil {
		return err
	}
	if !inv.Status.Valid() {
		return fmt.Errorf("%w %q", ErrInvalidStatus, inv.Status)
	}
	if !inv.Currency.Valid() {
		return fmt.Errorf("%w %q", ErrInvalidCurrency, inv.Currency)
	}
	for i, note := range inv.Notes {
		if strings.TrimSpace(note.Label) == "" {
			return fmt.Errorf("%w: note %d needs a label", httpx.ErrValidation, i)
		}
	}
	if inv.Customer != nil {
		if err := inv.Customer.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDates requires both dates and rejects a due date earlier than the
// invoice date. Equal dates are accepted.
func ValidateDates(invoiceDate, dueDate time.Time) error {
	if invoiceDate.IsZero() || dueDate.IsZero() {
		return ErrDatesRequired
	}
	if civilDate(dueDate).Before(civilDate(invoiceDate)) {
		return ErrDueBeforeInvoiceDate
	}
	return nil
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Validate enforces item invariants.
func (it *Item) Validate() error {
	if strings.TrimSpace(it.Description) == "" {
		return fmt.Errorf("%w: item description is required", httpx.ErrValidation)
	}
	if it.Quantity <= 0 {
		return fmt.Errorf("%w: item quantity must be a positive integer", httpx.ErrValidation)
	}
	if it.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: item unit price must not be negative", httpx.ErrValidation)
	}
	if !it.UnitPrice.Equal(it.UnitPrice.Truncate(moneyPlaces)) {
		return fmt.Errorf("%w: item unit price allows at most %d decimal places", httpx.ErrValidation, moneyPlaces)
	}
	return nil
}

// Validate enforces column invariants.
func (c *Column) Validate() error {
	if strings.TrimSpace(c.ColumnName) == "" {
		return fmt.Errorf("%w: column name is required", httpx.ErrValidation)
	}
	if c.Priority < 0 {
		return fmt.Errorf("%w: column priority must not be negative", httpx.ErrValidation)
	}
	return nil
}

// Validate enforces the customer profile invariants.
func (p *CustomerProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: customer name is required", httpx.ErrValidation)
	}
	if p.Contact.Phone == "" && p.Contact.Email == "" {
		return ErrContactRequired
	}
	if p.Contact.Phone != "" && !phonePattern.MatchString(p.Contact.Phone) {
		return fmt.Errorf("%w: phone must contain 10 to 15 digits", httpx.ErrValidation)
	}
	if p.Contact.Email != "" {
		if err := fieldChecker.Var(p.Contact.Email, "email"); err != nil {
			return fmt.Errorf("%w: invalid email %q", httpx.ErrValidation, p.Contact.Email)
		}
	}
	for _, addr := range []*Address{p.BillingAddress, p.ShippingAddress} {
		if addr != nil && addr.PostalCode != "" && !digitsPattern.MatchString(addr.PostalCode) {
			return fmt.Errorf("%w: postal code must be numeric", httpx.ErrValidation)
		}
	}
	return nil
}

// ValidateRates keeps every percentage within [0, 100].
func ValidateRates(r Rates) error {
	for name, pct := range map[string]decimal.Decimal{
		"tax":        r.Tax,
		"discount":   r.Discount,
		"concession": r.Concession,
	} {
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return fmt.Errorf("%w: %s percentage %s outside 0..100", httpx.ErrValidation, name, pct.String())
		}
	}
	return nil
}

// ParseIDList splits a comma separated list of positive ids, ignoring blanks.
func ParseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: invalid invoice id %q", httpx.ErrValidation, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
