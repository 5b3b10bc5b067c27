package order

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glosspos/api/internal/pricing"
)

// Action is the sealed set of order state transitions. The reducer is
// pure: actions carry every piece of catalog data they need (already
// fetched by the caller), so reducing never does I/O and never reads a
// clock. Caller-side validation (coupon validity, per-unit caps) happens
// before dispatch.
type Action interface {
	isAction()
}

// AddProduct adds a retail product line, or bumps the quantity of the
// existing line for the same product.
type AddProduct struct {
	ItemID    uuid.UUID // client-generated line id, used only when a new line is created
	ProductID uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	Taxable   bool
	Quantity  int32
}

// AddService adds a service line priced from a tier. Service lines are
// never merged; each add is its own line.
type AddService struct {
	ItemID     uuid.UUID
	ServiceID  uuid.UUID
	Name       string
	Tier       pricing.Tier
	Taxable    bool
	PerUnitQty int32 // ignored unless the tier is per-unit; defaults to 1
}

// AddCustomItem adds a free-form line with a staff-entered price.
type AddCustomItem struct {
	ItemID    uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	Taxable   bool
	Quantity  int32
}

// UpdateItemQuantity sets a line's quantity. A resulting quantity below
// one removes the line instead of erroring.
type UpdateItemQuantity struct {
	ItemID   uuid.UUID
	Quantity int32
}

// UpdatePerUnitQuantity sets the per-unit count on a per-unit service
// line. Below one removes the line.
type UpdatePerUnitQuantity struct {
	ItemID     uuid.UUID
	PerUnitQty int32
}

// RemoveItem deletes a line.
type RemoveItem struct {
	ItemID uuid.UUID
}

// SetCustomer attaches or detaches a customer reference. Metadata only;
// totals are untouched.
type SetCustomer struct {
	CustomerID *uuid.UUID
}

// SetVehicle attaches a vehicle and records its size class. Existing
// line prices are not touched until RecalculateVehiclePrices is
// dispatched with fresh catalog data.
type SetVehicle struct {
	VehicleID *uuid.UUID
	SizeClass string
}

// RecalculateVehiclePrices re-resolves every service line whose stored
// tier name still exists on the (freshly fetched) service definition.
// Lines whose tier can no longer be found keep their price: stale
// pricing beats deleting a sold item.
type RecalculateVehiclePrices struct {
	// Tiers maps service id -> tier name -> current tier definition.
	Tiers map[uuid.UUID]map[string]pricing.Tier
}

// SetCoupon applies or clears (nil) a coupon.
type SetCoupon struct {
	Coupon *Coupon
}

// SetLoyaltyRedeem records a loyalty redemption and its dollar effect.
type SetLoyaltyRedeem struct {
	Points   int32
	Discount decimal.Decimal
}

// ApplyManualDiscount applies a staff discount. Percent discounts are
// valued against the current subtotal immediately.
type ApplyManualDiscount struct {
	Kind  string // enum.DiscountKind*
	Value decimal.Decimal
	Label string
}

// RemoveManualDiscount clears the manual discount.
type RemoveManualDiscount struct{}

// SetNotes replaces the order notes. Metadata only.
type SetNotes struct {
	Notes string
}

// Clear resets the order to empty, keeping the tax rate.
type Clear struct{}

func (AddProduct) isAction()               {}
func (AddService) isAction()               {}
func (AddCustomItem) isAction()            {}
func (UpdateItemQuantity) isAction()       {}
func (UpdatePerUnitQuantity) isAction()    {}
func (RemoveItem) isAction()               {}
func (SetCustomer) isAction()              {}
func (SetVehicle) isAction()               {}
func (RecalculateVehiclePrices) isAction() {}
func (SetCoupon) isAction()                {}
func (SetLoyaltyRedeem) isAction()         {}
func (ApplyManualDiscount) isAction()      {}
func (RemoveManualDiscount) isAction()     {}
func (SetNotes) isAction()                 {}
func (Clear) isAction()                    {}
