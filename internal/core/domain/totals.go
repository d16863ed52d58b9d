package domain

import "github.com/shopspring/decimal"

var oneHundred = decimal.NewFromInt(100)

// Adjustments are document-level amounts applied on top of the item sum.
type Adjustments struct {
	Discount decimal.Decimal
	LateFee  decimal.Decimal
}

type Totals struct {
	Subtotal   decimal.Decimal
	TaxAmount1 decimal.Decimal
	TaxAmount2 decimal.Decimal
	Total      decimal.Decimal
}

// CalculateTotals reduces over the full current item set. It is always a
// from-scratch computation, never an incremental one, so a missed update
// path cannot make the stored totals drift.
//
// Rounding happens only when tax amounts and the grand total are
// computed; per-item totals keep full precision so rounding error does
// not compound across many items.
func CalculateTotals(kind DocumentKind, items []Item, policy TaxPolicy, adj Adjustments) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		// Quote items can be excluded from totals while staying
		// visible; invoice items always count.
		if kind == KindQuote && !it.IncludeInTotal {
			continue
		}
		subtotal = subtotal.Add(it.Total)
	}

	taxable := subtotal.Sub(adj.Discount)
	tax1 := taxable.Mul(policy.Rate1).Div(oneHundred).Round(2)
	tax2 := taxable.Mul(policy.Rate2).Div(oneHundred).Round(2)
	total := taxable.Add(tax1).Add(tax2).Add(adj.LateFee).Round(2)

	return Totals{
		Subtotal:   subtotal,
		TaxAmount1: tax1,
		TaxAmount2: tax2,
		Total:      total,
	}
}
