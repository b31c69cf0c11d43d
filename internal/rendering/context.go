package rendering

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sage-invoice/sage/internal/invoice"
)

// Links controls how asset and image references are written into documents.
// In bundle mode they point inside the exported archive.
type Links struct {
	MediaURL  string
	StaticURL string
	Bundle    bool
}

// ItemContext is one line in the rendered document.
type ItemContext struct {
	Description string
	Quantity    int
	Measurement string
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	CustomData  map[string]string
}

// Context is the data handed to document templates.
type Context struct {
	Title        string
	TrackingCode string
	InvoiceDate  time.Time
	DueDate      time.Time
	Status       invoice.Status
	Currency     invoice.Currency
	Receipt      bool

	CustomerName    string
	CompanyName     string
	CustomerEmail   string
	CustomerPhone   string
	BillingAddress  *invoice.Address
	ShippingAddress *invoice.Address

	Items         []ItemContext
	CustomColumns []string

	Subtotal             decimal.Decimal
	TaxPercentage        decimal.Decimal
	TaxAmount            decimal.Decimal
	DiscountPercentage   decimal.Decimal
	DiscountAmount       decimal.Decimal
	ConcessionPercentage decimal.Decimal
	ConcessionAmount     decimal.Decimal
	GrandTotal           decimal.Decimal

	LogoURL          string
	SignURL          string
	StampURL         string
	AssetsURL        string
	AdditionalFields []invoice.Note
}

// Image names used inside export bundles.
const (
	LogoFile      = "logo.png"
	SignatureFile = "signature.png"
	StampFile     = "stamp.png"
)

// BuildContext assembles the template data for a fully loaded invoice.
func BuildContext(inv *invoice.Invoice, links Links) Context {
	ctx := Context{
		Title:            inv.Title,
		TrackingCode:     inv.TrackingCode,
		InvoiceDate:      inv.InvoiceDate,
		DueDate:          inv.DueDate,
		Status:           inv.Status,
		Currency:         inv.Currency,
		Receipt:          inv.Receipt,
		CustomerName:     inv.CustomerName,
		AdditionalFields: inv.Notes,
		Items:            make([]ItemContext, 0, len(inv.Items)),
		CustomColumns:    []string{},
	}
	ctx.CustomerEmail, ctx.CustomerPhone = contactFields(inv)
	if c := inv.Customer; c != nil {
		ctx.CompanyName = c.CompanyName
		ctx.BillingAddress = c.BillingAddress
		ctx.ShippingAddress = c.ShippingAddress
	}

	seen := map[string]bool{}
	for _, it := range inv.Items {
		custom := make(map[string]string, len(it.Columns))
		for _, col := range it.Columns {
			custom[col.ColumnName] = col.Value
			if !seen[col.ColumnName] {
				seen[col.ColumnName] = true
				ctx.CustomColumns = append(ctx.CustomColumns, col.ColumnName)
			}
		}
		ctx.Items = append(ctx.Items, ItemContext{
			Description: it.Description,
			Quantity:    it.Quantity,
			Measurement: it.Measurement,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
			CustomData:  custom,
		})
	}

	if e := inv.Expense; e != nil {
		ctx.Subtotal = e.Subtotal
		ctx.TaxPercentage = e.TaxPercentage
		ctx.TaxAmount = e.TaxAmount
		ctx.DiscountPercentage = e.DiscountPercentage
		ctx.DiscountAmount = e.DiscountAmount
		ctx.ConcessionPercentage = e.ConcessionPercentage
		ctx.ConcessionAmount = e.ConcessionAmount
		ctx.GrandTotal = e.TotalAmount
	}

	ctx.AssetsURL = strings.TrimRight(links.StaticURL, "/")
	if links.Bundle {
		ctx.AssetsURL = "assets"
	}
	ctx.LogoURL = links.image(inv, inv.Logo, LogoFile)
	ctx.SignURL = links.image(inv, inv.Signature, SignatureFile)
	ctx.StampURL = links.image(inv, inv.Stamp, StampFile)
	return ctx
}

func (l Links) image(inv *invoice.Invoice, ref, bundleName string) string {
	if ref == "" {
		return ""
	}
	if l.Bundle {
		return path.Join("images", strconv.FormatInt(inv.ID, 10), bundleName)
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "/") {
		return ref
	}
	return strings.TrimRight(l.MediaURL, "/") + "/" + strings.TrimLeft(ref, "/")
}

// contactFields prefers the structured customer contact and otherwise picks
// the first contact containing "@" as email and the first all-digit one as
// phone.
func contactFields(inv *invoice.Invoice) (email, phone string) {
	if c := inv.Customer; c != nil && (c.Contact.Email != "" || c.Contact.Phone != "") {
		return c.Contact.Email, c.Contact.Phone
	}
	for _, contact := range inv.Contacts {
		contact = strings.TrimSpace(contact)
		switch {
		case email == "" && strings.Contains(contact, "@"):
			email = contact
		case phone == "" && isDigits(contact):
			phone = contact
		}
	}
	return email, phone
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
