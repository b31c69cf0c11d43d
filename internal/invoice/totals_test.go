package invoice

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pricedItem(qty int, unit string) Item {
	it := Item{Description: "line", Quantity: qty, UnitPrice: dec(unit)}
	it.Reprice()
	return it
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name       string
		items      []Item
		rates      Rates
		subtotal   string
		tax        string
		discount   string
		concession string
		total      string
	}{
		{
			name:     "tax and discount on subtotal",
			items:    []Item{pricedItem(1, "100"), pricedItem(2, "50")},
			rates:    Rates{Tax: dec("10"), Discount: dec("5")},
			subtotal: "200.00", tax: "20.00", discount: "10.00", concession: "0.00", total: "210.00",
		},
		{
			name:     "tax only",
			items:    []Item{pricedItem(1, "250")},
			rates:    Rates{Tax: dec("5")},
			subtotal: "250.00", tax: "12.50", discount: "0.00", concession: "0.00", total: "262.50",
		},
		{
			name:     "concession reduces the total",
			items:    []Item{pricedItem(4, "25")},
			rates:    Rates{Tax: dec("10"), Discount: dec("10"), Concession: dec("5")},
			subtotal: "100.00", tax: "10.00", discount: "10.00", concession: "5.00", total: "95.00",
		},
		{
			name:     "no items",
			rates:    Rates{Tax: dec("18")},
			subtotal: "0.00", tax: "0.00", discount: "0.00", concession: "0.00", total: "0.00",
		},
		{
			name:     "half even rounding",
			items:    []Item{pricedItem(1, "0.25")},
			rates:    Rates{Tax: dec("10")},
			subtotal: "0.25", tax: "0.02", discount: "0.00", concession: "0.00", total: "0.27",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.items, tt.rates)
			assert.Equal(t, tt.subtotal, got.Subtotal.StringFixed(2))
			assert.Equal(t, tt.tax, got.TaxAmount.StringFixed(2))
			assert.Equal(t, tt.discount, got.DiscountAmount.StringFixed(2))
			assert.Equal(t, tt.concession, got.ConcessionAmount.StringFixed(2))
			assert.Equal(t, tt.total, got.Total.StringFixed(2))
		})
	}
}

func TestComputeTotalsIdentityHolds(t *testing.T) {
	items := []Item{pricedItem(3, "19.99"), pricedItem(7, "3.33"), pricedItem(1, "0.05")}
	for _, pct := range []string{"0", "7.5", "12.345", "33.33", "100"} {
		rates := Rates{Tax: dec(pct), Discount: dec("2.5"), Concession: dec("1.25")}
		got := ComputeTotals(items, rates)
		want := got.Subtotal.Add(got.TaxAmount).Sub(got.DiscountAmount).Sub(got.ConcessionAmount)
		assert.True(t, want.Equal(got.Total), "pct %s: %s != %s", pct, want, got.Total)
		assert.True(t, got.TaxAmount.Equal(got.TaxAmount.RoundBank(2)))
	}
}

func TestInvoiceRecalculateTotalsIsIdempotent(t *testing.T) {
	inv := &Invoice{
		ID:    7,
		Items: []Item{pricedItem(1, "100"), pricedItem(2, "50")},
		Expense: &Expense{
			InvoiceID:          7,
			TaxPercentage:      dec("10"),
			DiscountPercentage: dec("5"),
		},
	}
	first := inv.RecalculateTotals().Totals()
	second := inv.RecalculateTotals().Totals()

	assert.True(t, first.Total.Equal(second.Total))
	assert.True(t, first.Subtotal.Equal(second.Subtotal))
	assert.Equal(t, "210.00", second.Total.StringFixed(2))
}

func TestInvoiceRecalculateTotalsCreatesMissingExpense(t *testing.T) {
	inv := &Invoice{ID: 3, Items: []Item{pricedItem(2, "12.5")}}

	expense := inv.RecalculateTotals()
	require.NotNil(t, expense)
	assert.Equal(t, int64(3), expense.InvoiceID)
	assert.True(t, expense.TaxPercentage.IsZero())
	assert.True(t, expense.TotalAmount.Equal(decimal.NewFromInt(25)))
}

func TestItemReprice(t *testing.T) {
	it := Item{Quantity: 3, UnitPrice: dec("33.335")}
	it.Reprice()
	assert.Equal(t, "100.00", it.TotalPrice.StringFixed(2))
}
