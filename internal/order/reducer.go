package order

import (
	"github.com/shopspring/decimal"

	"github.com/glosspos/api/internal/enum"
	"github.com/glosspos/api/internal/pricing"
)

// Reduce applies one action to an order and returns the new state. The
// input state is never mutated; the same (state, action) pair always
// yields the same result.
func Reduce(o Order, a Action) Order {
	switch act := a.(type) {
	case AddProduct:
		return recompute(addProduct(o.clone(), act))
	case AddService:
		return recompute(addService(o.clone(), act))
	case AddCustomItem:
		return recompute(addCustomItem(o.clone(), act))
	case UpdateItemQuantity:
		return recompute(updateQuantity(o.clone(), act))
	case UpdatePerUnitQuantity:
		return recompute(updatePerUnitQuantity(o.clone(), act))
	case RemoveItem:
		n := o.clone()
		if i := n.itemIndex(act.ItemID); i >= 0 {
			n.Items = removeItem(n.Items, i)
		}
		return recompute(n)
	case SetCustomer:
		// Metadata setter: totals untouched.
		n := o.clone()
		n.CustomerID = act.CustomerID
		return n
	case SetVehicle:
		n := o.clone()
		n.VehicleID = act.VehicleID
		n.VehicleSizeClass = act.SizeClass
		return recompute(n)
	case RecalculateVehiclePrices:
		return recompute(recalculatePrices(o.clone(), act))
	case SetCoupon:
		n := o.clone()
		n.Coupon = act.Coupon
		return recompute(n)
	case SetLoyaltyRedeem:
		n := o.clone()
		n.LoyaltyPointsToRedeem = act.Points
		n.LoyaltyDiscount = pricing.Round2(act.Discount)
		return recompute(n)
	case ApplyManualDiscount:
		return recompute(applyManualDiscount(o.clone(), act))
	case RemoveManualDiscount:
		n := o.clone()
		n.Manual = nil
		return recompute(n)
	case SetNotes:
		// Metadata setter: totals untouched.
		n := o.clone()
		n.Notes = act.Notes
		return n
	case Clear:
		return New(o.TaxRate)
	default:
		return o
	}
}

func addProduct(o Order, act AddProduct) Order {
	qty := act.Quantity
	if qty < 1 {
		qty = 1
	}
	// Same product twice merges into one line.
	if i := o.productIndex(act.ProductID); i >= 0 {
		o.Items[i].Quantity += qty
		return o
	}
	pid := act.ProductID
	o.Items = append(o.Items, LineItem{
		ID:        act.ItemID,
		ItemType:  enum.ItemTypeProduct,
		ProductID: &pid,
		Name:      act.Name,
		Quantity:  qty,
		UnitPrice: act.UnitPrice,
		Taxable:   act.Taxable,
	})
	return o
}

func addService(o Order, act AddService) Order {
	sid := act.ServiceID
	resolved := pricing.ResolvePrice(act.Tier, o.VehicleSizeClass)

	item := LineItem{
		ID:               act.ItemID,
		ItemType:         enum.ItemTypeService,
		ServiceID:        &sid,
		Name:             act.Name,
		Quantity:         1,
		UnitPrice:        resolved,
		Taxable:          act.Taxable,
		TierName:         act.Tier.Name,
		VehicleSizeClass: o.VehicleSizeClass,
	}
	if act.Tier.PerUnit {
		perQty := act.PerUnitQty
		if perQty < 1 {
			perQty = 1
		}
		item.PerUnitQty = perQty
		item.PerUnitPrice = resolved
		item.PerUnitLabel = act.Tier.PerUnitLabel
		item.PerUnitMax = act.Tier.PerUnitMax
		item.UnitPrice = resolved.Mul(decimal.NewFromInt32(perQty))
	}
	o.Items = append(o.Items, item)
	return o
}

func addCustomItem(o Order, act AddCustomItem) Order {
	qty := act.Quantity
	if qty < 1 {
		qty = 1
	}
	o.Items = append(o.Items, LineItem{
		ID:        act.ItemID,
		ItemType:  enum.ItemTypeCustom,
		Name:      act.Name,
		Quantity:  qty,
		UnitPrice: act.UnitPrice,
		Taxable:   act.Taxable,
	})
	return o
}

func updateQuantity(o Order, act UpdateItemQuantity) Order {
	i := o.itemIndex(act.ItemID)
	if i < 0 {
		return o
	}
	// Zero or negative means delete, not error.
	if act.Quantity < 1 {
		o.Items = removeItem(o.Items, i)
		return o
	}
	o.Items[i].Quantity = act.Quantity
	return o
}

func updatePerUnitQuantity(o Order, act UpdatePerUnitQuantity) Order {
	i := o.itemIndex(act.ItemID)
	if i < 0 || o.Items[i].PerUnitPrice.IsZero() {
		return o
	}
	if act.PerUnitQty < 1 {
		o.Items = removeItem(o.Items, i)
		return o
	}
	it := &o.Items[i]
	it.PerUnitQty = act.PerUnitQty
	it.UnitPrice = it.PerUnitPrice.Mul(decimal.NewFromInt32(act.PerUnitQty))
	return o
}

func recalculatePrices(o Order, act RecalculateVehiclePrices) Order {
	for i := range o.Items {
		it := &o.Items[i]
		if it.ServiceID == nil || it.TierName == "" {
			continue
		}
		tiers, ok := act.Tiers[*it.ServiceID]
		if !ok {
			continue
		}
		tier, ok := tiers[it.TierName]
		if !ok {
			// Tier renamed or deleted since the item was added: keep the
			// sold price.
			continue
		}
		resolved := pricing.ResolvePrice(tier, o.VehicleSizeClass)
		if it.PerUnitQty > 0 {
			it.PerUnitPrice = resolved
			it.UnitPrice = resolved.Mul(decimal.NewFromInt32(it.PerUnitQty))
		} else {
			it.UnitPrice = resolved
		}
		it.VehicleSizeClass = o.VehicleSizeClass
	}
	return o
}

func applyManualDiscount(o Order, act ApplyManualDiscount) Order {
	m := &ManualDiscount{Kind: act.Kind, Value: act.Value, Label: act.Label}
	switch act.Kind {
	case enum.DiscountKindPercent:
		// Valued against the subtotal as it stands right now; later item
		// edits do not re-derive it.
		m.Amount = pricing.Round2(o.Subtotal.Mul(act.Value).Div(decimal.NewFromInt(100)))
	default:
		m.Amount = pricing.Round2(act.Value)
	}
	o.Manual = m
	return o
}
