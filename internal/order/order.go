// Package order implements the cart/quote composition engine as a pure
// reducer: an immutable Order state folded over dispatched actions.
// Totals are always recomputed from scratch after a state change, never
// patched incrementally, so repeated edits cannot drift.
package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glosspos/api/internal/pricing"
)

// LineItem is one sellable line on a ticket or quote. Product lines for
// the same product merge into a single line; service lines never do.
type LineItem struct {
	ID        uuid.UUID
	ItemType  string // enum.ItemType*
	ProductID *uuid.UUID
	ServiceID *uuid.UUID
	Name      string

	Quantity   int32
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	Taxable    bool
	TaxAmount  decimal.Decimal

	// Pricing provenance: which tier and vehicle size produced UnitPrice.
	// Used to re-resolve the price if the vehicle changes later.
	TierName         string
	VehicleSizeClass string

	// Per-unit services (e.g. per headlight). When PerUnitPrice is set,
	// UnitPrice = PerUnitQty x PerUnitPrice.
	PerUnitQty   int32
	PerUnitPrice decimal.Decimal
	PerUnitLabel string
	PerUnitMax   int32
}

// Coupon is an applied coupon code with its fixed dollar discount.
type Coupon struct {
	ID       uuid.UUID
	Code     string
	Discount decimal.Decimal
}

// ManualDiscount is a staff-entered discount. Percent discounts are
// valued against the subtotal at apply time; the resulting dollar amount
// is frozen and not re-derived on later edits.
type ManualDiscount struct {
	Kind   string // enum.DiscountKind*
	Value  decimal.Decimal
	Label  string
	Amount decimal.Decimal
}

// QuoteMeta carries the fields that distinguish a draft quote from a
// live ticket. Nil for live tickets.
type QuoteMeta struct {
	ID         uuid.UUID
	Number     string
	ValidUntil time.Time
	Status     string // enum.QuoteStatus*
}

// Order is the reducer state for one open ticket or draft quote.
// Subtotal, TaxAmount, DiscountAmount and Total are derived; they are
// recomputed from Items plus discounts and must never be hand-set.
type Order struct {
	TaxRate decimal.Decimal

	Items []LineItem

	CustomerID       *uuid.UUID
	VehicleID        *uuid.UUID
	VehicleSizeClass string

	Coupon                *Coupon
	LoyaltyPointsToRedeem int32
	LoyaltyDiscount       decimal.Decimal
	Manual                *ManualDiscount

	Notes string

	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal

	Quote *QuoteMeta
}

// New creates an empty order with the given tax rate.
func New(taxRate decimal.Decimal) Order {
	o := Order{TaxRate: taxRate}
	return recompute(o)
}

// clone copies the order deeply enough that mutating the copy's items
// never aliases the original. Pointer fields are replaced wholesale by
// the reducer, never mutated in place.
func (o Order) clone() Order {
	items := make([]LineItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

// recompute derives every money field from the item list and the
// currently applied discounts. Called at the end of each reducing step
// except pure metadata setters.
func recompute(o Order) Order {
	lines := make([]pricing.Line, 0, len(o.Items))
	for i := range o.Items {
		it := &o.Items[i]
		it.TotalPrice = pricing.Round2(it.UnitPrice.Mul(decimal.NewFromInt32(it.Quantity)))
		it.TaxAmount = pricing.ItemTax(it.TotalPrice, it.Taxable, o.TaxRate)
		lines = append(lines, pricing.Line{Total: it.TotalPrice, Tax: it.TaxAmount})
	}

	// Stacking order: coupon + loyalty + manual. All three may be active
	// at once.
	discount := decimal.Zero
	if o.Coupon != nil {
		discount = discount.Add(o.Coupon.Discount)
	}
	discount = discount.Add(o.LoyaltyDiscount)
	if o.Manual != nil {
		discount = discount.Add(o.Manual.Amount)
	}

	t := pricing.Calculate(lines, discount)
	o.Subtotal = t.Subtotal
	o.TaxAmount = t.Tax
	o.DiscountAmount = t.Discount
	o.Total = t.Total
	return o
}

// itemIndex finds an item by id, -1 when absent.
func (o Order) itemIndex(id uuid.UUID) int {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// productIndex finds the line for a product id, -1 when absent.
func (o Order) productIndex(productID uuid.UUID) int {
	for i := range o.Items {
		it := o.Items[i]
		if it.ProductID != nil && *it.ProductID == productID {
			return i
		}
	}
	return -1
}

// removeItem deletes the item at index i preserving display order.
func removeItem(items []LineItem, i int) []LineItem {
	return append(items[:i:i], items[i+1:]...)
}
