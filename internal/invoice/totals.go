package invoice

import "github.com/shopspring/decimal"

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Rates are the percentage inputs of an expense.
type Rates struct {
	Tax        decimal.Decimal
	Discount   decimal.Decimal
	Concession decimal.Decimal
}

// Totals are the amounts derived from items and rates.
type Totals struct {
	Subtotal         decimal.Decimal
	TaxAmount        decimal.Decimal
	DiscountAmount   decimal.Decimal
	ConcessionAmount decimal.Decimal
	Total            decimal.Decimal
}

// ComputeTotals derives the expense amounts. Every percentage applies to the
// subtotal; each amount is rounded half-even to cents and the total is the
// sum of the rounded parts, so
//
//	Total == Subtotal + TaxAmount - DiscountAmount - ConcessionAmount
//
// holds exactly.
func ComputeTotals(items []Item, rates Rates) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.TotalPrice)
	}
	subtotal = subtotal.RoundBank(moneyPlaces)

	tax := percentOf(subtotal, rates.Tax)
	discount := percentOf(subtotal, rates.Discount)
	concession := percentOf(subtotal, rates.Concession)

	return Totals{
		Subtotal:         subtotal,
		TaxAmount:        tax,
		DiscountAmount:   discount,
		ConcessionAmount: concession,
		Total:            subtotal.Add(tax).Sub(discount).Sub(concession),
	}
}

func percentOf(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred).RoundBank(moneyPlaces)
}

// RecalculateTotals recomputes the derived expense fields from the loaded
// items and the stored rates, creating a zero-rate expense when the invoice
// has none yet. Calling it repeatedly without changes yields the same result.
func (inv *Invoice) RecalculateTotals() *Expense {
	if inv.Expense == nil {
		inv.Expense = &Expense{InvoiceID: inv.ID}
	}
	inv.Expense.Apply(ComputeTotals(inv.Items, inv.Expense.Rates()))
	return inv.Expense
}
