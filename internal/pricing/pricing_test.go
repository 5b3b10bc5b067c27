package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func sizeAwareTier() Tier {
	return Tier{
		Name:             "STANDARD",
		Label:            "Standard Detail",
		Price:            dec("100.00"),
		VehicleSizeAware: true,
		SedanPrice:       decPtr("100.00"),
		TruckSuvPrice:    decPtr("120.00"),
		SuvVanPrice:      decPtr("140.00"),
	}
}

func TestResolvePrice(t *testing.T) {
	tests := []struct {
		name      string
		tier      Tier
		sizeClass string
		want      string
	}{
		{"sedan", sizeAwareTier(), "SEDAN", "100.00"},
		{"truck suv 2 row", sizeAwareTier(), "TRUCK_SUV_2ROW", "120.00"},
		{"truck suv 3 row shares the truck bucket", sizeAwareTier(), "TRUCK_SUV_3ROW", "120.00"},
		{"suv van", sizeAwareTier(), "SUV_VAN", "140.00"},
		{"no vehicle falls back to base", sizeAwareTier(), "", "100.00"},
		{"unknown size falls back to sedan bucket", sizeAwareTier(), "MOTORCYCLE", "100.00"},
		{
			"size-unaware tier ignores the vehicle",
			Tier{Name: "EXPRESS", Price: dec("29.99")},
			"SUV_VAN",
			"29.99",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolvePrice(tt.tier, tt.sizeClass)
			if !got.Equal(dec(tt.want)) {
				t.Errorf("ResolvePrice() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResolvePriceMissingOverride(t *testing.T) {
	tier := sizeAwareTier()
	tier.SuvVanPrice = nil

	got := ResolvePrice(tier, "SUV_VAN")
	if !got.Equal(dec("100.00")) {
		t.Errorf("missing override: got %s, want base price 100.00", got)
	}
}

func TestPriceRange(t *testing.T) {
	min, max := PriceRange(sizeAwareTier())
	if !min.Equal(dec("100.00")) || !max.Equal(dec("140.00")) {
		t.Errorf("PriceRange() = %s..%s, want 100.00..140.00", min, max)
	}

	flat := Tier{Name: "EXPRESS", Price: dec("29.99")}
	min, max = PriceRange(flat)
	if !min.Equal(max) || !min.Equal(dec("29.99")) {
		t.Errorf("flat tier PriceRange() = %s..%s, want 29.99..29.99", min, max)
	}
}

func TestItemTax(t *testing.T) {
	rate := dec("0.095")

	got := ItemTax(dec("45.00"), true, rate)
	if !got.Equal(dec("4.28")) {
		t.Errorf("taxable item tax = %s, want 4.28", got)
	}

	got = ItemTax(dec("45.00"), false, rate)
	if !got.IsZero() {
		t.Errorf("non-taxable item tax = %s, want 0", got)
	}
}

func TestCalculate(t *testing.T) {
	lines := []Line{
		{Total: dec("45.00"), Tax: dec("4.28")},
		{Total: dec("20.00"), Tax: dec("1.90")},
	}

	got := Calculate(lines, dec("10.00"))
	if !got.Subtotal.Equal(dec("65.00")) {
		t.Errorf("Subtotal = %s, want 65.00", got.Subtotal)
	}
	if !got.Tax.Equal(dec("6.18")) {
		t.Errorf("Tax = %s, want 6.18", got.Tax)
	}
	if !got.Discount.Equal(dec("10.00")) {
		t.Errorf("Discount = %s, want 10.00", got.Discount)
	}
	if !got.Total.Equal(dec("61.18")) {
		t.Errorf("Total = %s, want 61.18", got.Total)
	}
}

func TestCalculateOverDiscountClampsToZero(t *testing.T) {
	lines := []Line{{Total: dec("20.00"), Tax: dec("1.90")}}

	got := Calculate(lines, dec("50.00"))
	if !got.Total.IsZero() {
		t.Errorf("over-discounted Total = %s, want 0", got.Total)
	}
	// The discount itself is recorded as entered, not reduced to fit.
	if !got.Discount.Equal(dec("50.00")) {
		t.Errorf("Discount = %s, want 50.00", got.Discount)
	}
}

func TestCalculateEmpty(t *testing.T) {
	got := Calculate(nil, decimal.Zero)
	if !got.Subtotal.IsZero() || !got.Tax.IsZero() || !got.Total.IsZero() {
		t.Errorf("empty order totals = %+v, want all zero", got)
	}
}
