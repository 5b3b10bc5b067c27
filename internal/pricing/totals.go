package pricing

import "github.com/shopspring/decimal"

// Line is the slice of a line item the totals calculator cares about.
type Line struct {
	Total decimal.Decimal // unit price x quantity
	Tax   decimal.Decimal // already rounded per item, zero when non-taxable
}

// Totals is the money breakdown of an order or quote.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Round2 rounds to the nearest cent. All money values are rounded at
// each stage rather than once at the end so that repeated recomputation
// never drifts.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ItemTax computes the tax on a line total. Non-taxable lines carry
// zero tax regardless of rate.
func ItemTax(total decimal.Decimal, taxable bool, rate decimal.Decimal) decimal.Decimal {
	if !taxable {
		return decimal.Zero
	}
	return Round2(total.Mul(rate))
}

// Calculate folds line items and a discount amount into totals. Item
// totals and item taxes are summed independently, each sum rounded to
// cents, then total = max(0, subtotal + tax - discount). Over-discounting
// clamps to zero rather than producing a negative charge.
func Calculate(lines []Line, discount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total)
		tax = tax.Add(l.Tax)
	}
	subtotal = Round2(subtotal)
	tax = Round2(tax)
	discount = Round2(discount)

	total := Round2(subtotal.Add(tax).Sub(discount))
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Totals{Subtotal: subtotal, Tax: tax, Discount: discount, Total: total}
}
