package invoice

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Date is a calendar date encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate wraps t as a calendar date.
func NewDate(t time.Time) Date {
	return Date{Time: civilDate(t)}
}

// UnmarshalJSON accepts YYYY-MM-DD, RFC3339 and null.
func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	d.Time = civilDate(t)
	return nil
}

// MarshalJSON renders the date as YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// CustomerRequest is the structured customer payload.
type CustomerRequest struct {
	Name            string   `json:"name" validate:"required,max=255"`
	CompanyName     string   `json:"company_name" validate:"max=255"`
	BillingAddress  *Address `json:"billing_address,omitempty"`
	ShippingAddress *Address `json:"shipping_address,omitempty"`
	Phone           string   `json:"phone" validate:"omitempty,numeric,min=10,max=15"`
	Email           string   `json:"email" validate:"omitempty,email"`
}

func (r *CustomerRequest) toModel() *CustomerProfile {
	if r == nil {
		return nil
	}
	return &CustomerProfile{
		Name:            strings.TrimSpace(r.Name),
		CompanyName:     strings.TrimSpace(r.CompanyName),
		BillingAddress:  r.BillingAddress,
		ShippingAddress: r.ShippingAddress,
		Contact:         Contact{Phone: strings.TrimSpace(r.Phone), Email: strings.TrimSpace(r.Email)},
	}
}

// InvoiceRequest creates or replaces an invoice. Items are only honoured on
// creation.
type InvoiceRequest struct {
	Title                string           `json:"title" validate:"required,max=255"`
	CategoryID           *int64           `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	InvoiceDate          Date             `json:"invoice_date"`
	DueDate              Date             `json:"due_date"`
	CustomerName         string           `json:"customer_name" validate:"required,max=255"`
	Customer             *CustomerRequest `json:"customer,omitempty"`
	Contacts             []string         `json:"contacts,omitempty" validate:"omitempty,dive,max=255"`
	TrackingCode         string           `json:"tracking_code" validate:"max=255"`
	Status               Status           `json:"status" validate:"omitempty,oneof=draft unpaid paid overdue"`
	Receipt              bool             `json:"receipt"`
	Notes                []Note           `json:"notes,omitempty" validate:"omitempty,dive"`
	Logo                 string           `json:"logo" validate:"max=512"`
	Signature            string           `json:"signature" validate:"max=512"`
	Stamp                string           `json:"stamp" validate:"max=512"`
	TemplateChoice       string           `json:"template_choice" validate:"max=50"`
	Currency             Currency         `json:"currency" validate:"omitempty,max=5"`
	TaxPercentage        *decimal.Decimal `json:"tax_percentage,omitempty"`
	DiscountPercentage   *decimal.Decimal `json:"discount_percentage,omitempty"`
	ConcessionPercentage *decimal.Decimal `json:"concession_percentage,omitempty"`
	Items                []ItemRequest    `json:"items,omitempty" validate:"omitempty,dive"`
}

func (r InvoiceRequest) toModel() *Invoice {
	inv := &Invoice{
		Title:          strings.TrimSpace(r.Title),
		CategoryID:     r.CategoryID,
		InvoiceDate:    r.InvoiceDate.Time,
		DueDate:        r.DueDate.Time,
		CustomerName:   strings.TrimSpace(r.CustomerName),
		Customer:       r.Customer.toModel(),
		Contacts:       r.Contacts,
		TrackingCode:   r.TrackingCode,
		Status:         r.Status,
		Receipt:        r.Receipt,
		Notes:          r.Notes,
		Logo:           r.Logo,
		Signature:      r.Signature,
		Stamp:          r.Stamp,
		TemplateChoice: strings.TrimSpace(r.TemplateChoice),
		Currency:       Currency(strings.ToUpper(string(r.Currency))),
	}
	if inv.Status == "" {
		inv.Status = StatusDraft
	}
	if inv.Currency == "" {
		inv.Currency = DefaultCurrency
	}
	if inv.Contacts == nil {
		inv.Contacts = []string{}
	}
	if inv.Notes == nil {
		inv.Notes = []Note{}
	}
	return inv
}

func (r InvoiceRequest) rates() RatesRequest {
	return RatesRequest{
		TaxPercentage:        r.TaxPercentage,
		DiscountPercentage:   r.DiscountPercentage,
		ConcessionPercentage: r.ConcessionPercentage,
	}
}

// ItemRequest describes an item and its optional custom columns.
type ItemRequest struct {
	Description string          `json:"description" validate:"required,max=255"`
	Quantity    int             `json:"quantity" validate:"required,gt=0"`
	Measurement string          `json:"measurement" validate:"max=100"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Columns     []ColumnRequest `json:"columns,omitempty" validate:"omitempty,dive"`
}

func (r ItemRequest) toModel(invoiceID int64) *Item {
	it := &Item{
		InvoiceID:   invoiceID,
		Description: strings.TrimSpace(r.Description),
		Quantity:    r.Quantity,
		Measurement: strings.TrimSpace(r.Measurement),
		UnitPrice:   r.UnitPrice,
	}
	it.Reprice()
	return it
}

// CreateItemRequest adds an item to an existing invoice.
type CreateItemRequest struct {
	InvoiceID int64 `json:"invoice_id" validate:"required,gt=0"`
	ItemRequest
}

// ColumnRequest describes a custom column value.
type ColumnRequest struct {
	ColumnName string `json:"column_name" validate:"required,max=100"`
	Value      string `json:"value" validate:"max=255"`
	Priority   int    `json:"priority" validate:"gte=0"`
}

func (r ColumnRequest) toModel(invoiceID, itemID int64) *Column {
	return &Column{
		InvoiceID:  invoiceID,
		ItemID:     itemID,
		ColumnName: strings.TrimSpace(r.ColumnName),
		Value:      r.Value,
		Priority:   r.Priority,
	}
}

// CreateColumnRequest adds a custom column to an existing item.
type CreateColumnRequest struct {
	ItemID int64 `json:"item_id" validate:"required,gt=0"`
	ColumnRequest
}

// RatesRequest updates expense percentages; nil fields are left unchanged.
type RatesRequest struct {
	TaxPercentage        *decimal.Decimal `json:"tax_percentage,omitempty"`
	DiscountPercentage   *decimal.Decimal `json:"discount_percentage,omitempty"`
	ConcessionPercentage *decimal.Decimal `json:"concession_percentage,omitempty"`
}

func (r RatesRequest) apply(current Rates) Rates {
	if r.TaxPercentage != nil {
		current.Tax = *r.TaxPercentage
	}
	if r.DiscountPercentage != nil {
		current.Discount = *r.DiscountPercentage
	}
	if r.ConcessionPercentage != nil {
		current.Concession = *r.ConcessionPercentage
	}
	return current
}

// StatusRequest changes the invoice status.
type StatusRequest struct {
	Status Status `json:"status" validate:"required,oneof=draft unpaid paid overdue"`
}
