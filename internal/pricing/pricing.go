package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/glosspos/api/internal/enum"
)

// Tier is one named pricing option on a service ("express", "premium").
// A vehicle-size-aware tier may override its base price per size bucket;
// a missing override silently falls back to the base price.
type Tier struct {
	Name             string
	Label            string
	Price            decimal.Decimal
	VehicleSizeAware bool
	SedanPrice       *decimal.Decimal
	TruckSuvPrice    *decimal.Decimal
	SuvVanPrice      *decimal.Decimal

	// Per-unit config. When PerUnit is true the tier price is charged
	// per unit (e.g. per headlight) up to PerUnitMax units.
	PerUnit      bool
	PerUnitLabel string
	PerUnitMax   int32
}

// ResolvePrice maps a tier and a vehicle size class to a unit price.
// Always returns a price: unknown sizes and missing overrides fall back
// to the tier's base price.
func ResolvePrice(tier Tier, sizeClass string) decimal.Decimal {
	if !tier.VehicleSizeAware || sizeClass == "" {
		return tier.Price
	}
	var override *decimal.Decimal
	switch sizeBucket(sizeClass) {
	case enum.VehicleSizeSedan:
		override = tier.SedanPrice
	case enum.VehicleSizeTruckSuv2Row:
		override = tier.TruckSuvPrice
	case enum.VehicleSizeSuvVan:
		override = tier.SuvVanPrice
	}
	if override == nil {
		return tier.Price
	}
	return *override
}

// PriceRange returns the lowest and highest price the tier can resolve
// to, for display before a vehicle is known. Non-size-aware tiers return
// min == max == Price.
func PriceRange(tier Tier) (min, max decimal.Decimal) {
	min, max = tier.Price, tier.Price
	if !tier.VehicleSizeAware {
		return min, max
	}
	for _, p := range []*decimal.Decimal{tier.SedanPrice, tier.TruckSuvPrice, tier.SuvVanPrice} {
		if p == nil {
			continue
		}
		if p.LessThan(min) {
			min = *p
		}
		if p.GreaterThan(max) {
			max = *p
		}
	}
	return min, max
}

// sizeBucket collapses granular vehicle size classes into the three
// pricing buckets tiers are configured with.
func sizeBucket(sizeClass string) string {
	switch sizeClass {
	case enum.VehicleSizeTruckSuv2Row, enum.VehicleSizeTruckSuv3Row:
		return enum.VehicleSizeTruckSuv2Row
	case enum.VehicleSizeSuvVan:
		return enum.VehicleSizeSuvVan
	default:
		return enum.VehicleSizeSedan
	}
}
