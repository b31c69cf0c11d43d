package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates invoice lifecycle states.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusUnpaid  Status = "unpaid"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusUnpaid, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// Currency is an ISO-like currency code.
type Currency string

// DefaultCurrency is applied when an invoice omits its currency.
const DefaultCurrency Currency = "USD"

var currencies = []Currency{
	"USD", "EUR", "GBP", "JPY", "AUD", "CAD", "CHF", "CNY", "INR", "RUB",
	"AED", "SAR", "TRY", "BRL", "ZAR", "NZD", "KRW", "SGD", "MXN", "IRR",
	"TOMAN", "QAR", "KWD", "BHD", "OMR", "EGP",
}

// Currencies lists the supported currency codes.
func Currencies() []Currency {
	out := make([]Currency, len(currencies))
	copy(out, currencies)
	return out
}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	for _, known := range currencies {
		if c == known {
			return true
		}
	}
	return false
}

// Note is a labelled free-text block printed on the document.
type Note struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

// Address is a postal address.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Contact holds the structured contact channels of a customer.
type Contact struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// CustomerProfile is the structured customer record of an invoice.
type CustomerProfile struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	CompanyName     string    `json:"company_name,omitempty"`
	BillingAddress  *Address  `json:"billing_address,omitempty"`
	ShippingAddress *Address  `json:"shipping_address,omitempty"`
	Contact         Contact   `json:"contact"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Invoice is the aggregate root for a billing document. Items and Expense
// are populated by the repository loaders that need them.
type Invoice struct {
	ID             int64            `json:"id"`
	Title          string           `json:"title"`
	Slug           string           `json:"slug"`
	CategoryID     *int64           `json:"category_id,omitempty"`
	InvoiceDate    time.Time        `json:"invoice_date"`
	DueDate        time.Time        `json:"due_date"`
	CustomerName   string           `json:"customer_name"`
	CustomerID     *int64           `json:"customer_id,omitempty"`
	Customer       *CustomerProfile `json:"customer,omitempty"`
	Contacts       []string         `json:"contacts"`
	TrackingCode   string           `json:"tracking_code"`
	Status         Status           `json:"status"`
	Receipt        bool             `json:"receipt"`
	Notes          []Note           `json:"notes"`
	Logo           string           `json:"logo,omitempty"`
	Signature      string           `json:"signature,omitempty"`
	Stamp          string           `json:"stamp,omitempty"`
	TemplateChoice string           `json:"template_choice"`
	Currency       Currency         `json:"currency"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`

	Items   []Item   `json:"items,omitempty"`
	Expense *Expense `json:"expense,omitempty"`
}

// Item is one billed line of an invoice.
type Item struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Measurement string          `json:"measurement,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Columns []Column `json:"columns,omitempty"`
}

// Reprice sets TotalPrice to Quantity × UnitPrice.
func (it *Item) Reprice() {
	it.TotalPrice = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).RoundBank(moneyPlaces)
}

// Column is a named extra attribute attached to an item.
type Column struct {
	ID         int64     `json:"id"`
	InvoiceID  int64     `json:"invoice_id"`
	ItemID     int64     `json:"item_id"`
	ColumnName string    `json:"column_name"`
	Value      string    `json:"value"`
	Priority   int       `json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Expense carries the invoice rates and the amounts derived from them. Only
// the percentage fields are writable; the amounts are owned by
// Invoice.RecalculateTotals.
type Expense struct {
	ID                   int64           `json:"id"`
	InvoiceID            int64           `json:"invoice_id"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	TaxPercentage        decimal.Decimal `json:"tax_percentage"`
	TaxAmount            decimal.Decimal `json:"tax_amount"`
	DiscountPercentage   decimal.Decimal `json:"discount_percentage"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	ConcessionPercentage decimal.Decimal `json:"concession_percentage"`
	ConcessionAmount     decimal.Decimal `json:"concession_amount"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Rates returns the percentage inputs of the expense.
func (e *Expense) Rates() Rates {
	if e == nil {
		return Rates{}
	}
	return Rates{Tax: e.TaxPercentage, Discount: e.DiscountPercentage, Concession: e.ConcessionPercentage}
}

// Apply copies derived totals onto the expense.
func (e *Expense) Apply(t Totals) {
	e.Subtotal = t.Subtotal
	e.TaxAmount = t.TaxAmount
	e.DiscountAmount = t.DiscountAmount
	e.ConcessionAmount = t.ConcessionAmount
	e.TotalAmount = t.Total
}

// Totals returns the derived amounts currently stored on the expense.
func (e *Expense) Totals() Totals {
	if e == nil {
		return Totals{}
	}
	return Totals{
		Subtotal:         e.Subtotal,
		TaxAmount:        e.TaxAmount,
		DiscountAmount:   e.DiscountAmount,
		ConcessionAmount: e.ConcessionAmount,
		Total:            e.TotalAmount,
	}
}

// ListFilters narrows invoice listings.
type ListFilters struct {
	Search     string
	Status     Status
	Receipt    *bool
	CategoryID *int64
	Ordering   string
	Limit      int
	Offset     int
}
