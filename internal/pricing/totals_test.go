package pricing

import (
	"testing"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/shopspring/decimal"
)

var testCatalog = DeliveryCatalog{
	"courier": 300,
	"pickup":  0,
}

func TestComputeTotalsNoPromo(t *testing.T) {
	t.Parallel()

	lines := []CartLine{{ProductID: "p1", Quantity: 2, UnitPriceCents: 1000}}
	got := ComputeTotals(lines, "courier", nil, testCatalog, 5000)

	if got.SubtotalCents != 2000 {
		t.Fatalf("expected subtotal 2000 got %d", got.SubtotalCents)
	}
	if got.DeliveryFeeCents != 300 {
		t.Fatalf("expected delivery 300 got %d", got.DeliveryFeeCents)
	}
	if got.PromoDiscountCents != 0 {
		t.Fatalf("expected no discount got %d", got.PromoDiscountCents)
	}
	if got.TotalCents != 2300 {
		t.Fatalf("expected total 2300 got %d", got.TotalCents)
	}
}

func TestComputeTotalsFreeShippingPromoOffsetsDelivery(t *testing.T) {
	t.Parallel()

	lines := []CartLine{{ProductID: "p1", Quantity: 2, UnitPriceCents: 1000}}
	promo := &AppliedPromo{Code: "SHIPFREE", Type: enums.DiscountTypeFreeShipping}
	got := ComputeTotals(lines, "courier", promo, testCatalog, 5000)

	if got.PromoDiscountCents != 300 {
		t.Fatalf("expected discount 300 got %d", got.PromoDiscountCents)
	}
	if got.TotalCents != 2000 {
		t.Fatalf("expected total 2000 got %d", got.TotalCents)
	}
}

func TestComputeTotalsFreeDeliveryThreshold(t *testing.T) {
	t.Parallel()

	lines := []CartLine{{ProductID: "p1", Quantity: 3, UnitPriceCents: 2000}}
	got := ComputeTotals(lines, "courier", nil, testCatalog, 5000)

	if got.SubtotalCents != 6000 {
		t.Fatalf("expected subtotal 6000 got %d", got.SubtotalCents)
	}
	if got.DeliveryFeeCents != 0 {
		t.Fatalf("expected free delivery got %d", got.DeliveryFeeCents)
	}
	if got.TotalCents != 6000 {
		t.Fatalf("expected total 6000 got %d", got.TotalCents)
	}
}

func TestComputeTotalsFreeShippingUsesPreOverridePrice(t *testing.T) {
	t.Parallel()

	lines := []CartLine{{ProductID: "p1", Quantity: 3, UnitPriceCents: 2000}}
	promo := &AppliedPromo{Type: enums.DiscountTypeFreeShipping}
	got := ComputeTotals(lines, "courier", promo, testCatalog, 5000)
	if got.PromoDiscountCents != 300 {
		t.Fatalf("expected pre-override base price as discount, got %d", got.PromoDiscountCents)
	}

	pickup := ComputeTotals(lines, "pickup", promo, testCatalog, 5000)
	if pickup.PromoDiscountCents != 0 {
		t.Fatalf("free method should yield zero discount, got %d", pickup.PromoDiscountCents)
	}
}

func TestComputeTotalsPercentageFloors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subtotal int64
		value    string
		want     int64
	}{
		{name: "ten percent", subtotal: 10000, value: "10", want: 1000},
		{name: "floors fraction", subtotal: 999, value: "10", want: 99},
		{name: "fractional percent", subtotal: 10000, value: "12.5", want: 1250},
		{name: "fractional floor", subtotal: 333, value: "33.3", want: 110},
		{name: "negative ignored", subtotal: 1000, value: "-5", want: 0},
	}

	for _, tt := range tests {
		lines := []CartLine{{ProductID: "p", Quantity: 1, UnitPriceCents: tt.subtotal}}
		promo := &AppliedPromo{Type: enums.DiscountTypePercentage, Value: decimal.RequireFromString(tt.value)}
		got := ComputeTotals(lines, "", promo, testCatalog, 0)
		if got.PromoDiscountCents != tt.want {
			t.Fatalf("%s: expected discount %d got %d", tt.name, tt.want, got.PromoDiscountCents)
		}
	}
}

func TestComputeTotalsAmountNeverExceedsSubtotal(t *testing.T) {
	t.Parallel()

	for _, subtotal := range []int64{1, 50, 999, 1000, 1001, 25000} {
		for _, value := range []int64{0, 1, 500, 1000, 1000000} {
			lines := []CartLine{{ProductID: "p", Quantity: 1, UnitPriceCents: subtotal}}
			promo := &AppliedPromo{Type: enums.DiscountTypeAmount, Value: decimal.NewFromInt(value)}
			got := ComputeTotals(lines, "courier", promo, testCatalog, 0)

			want := value
			if want > subtotal {
				want = subtotal
			}
			if got.PromoDiscountCents != want {
				t.Fatalf("subtotal=%d value=%d: expected discount %d got %d", subtotal, value, want, got.PromoDiscountCents)
			}
			if got.TotalCents < 0 {
				t.Fatalf("total must never be negative, got %d", got.TotalCents)
			}
		}
	}
}

func TestComputeTotalsNeverNegative(t *testing.T) {
	t.Parallel()

	promos := []*AppliedPromo{
		nil,
		{Type: enums.DiscountTypeAmount, Value: decimal.NewFromInt(1 << 40)},
		{Type: enums.DiscountTypePercentage, Value: decimal.NewFromInt(250)},
		{Type: enums.DiscountTypeFreeShipping},
	}
	carts := [][]CartLine{
		nil,
		{{ProductID: "a", Quantity: 1, UnitPriceCents: 1}},
		{{ProductID: "a", Quantity: 0, UnitPriceCents: 500}},
		{{ProductID: "a", Quantity: 4, UnitPriceCents: 1999}, {ProductID: "b", Quantity: 1, UnitPriceCents: 10}},
	}
	for _, cart := range carts {
		for _, promo := range promos {
			for _, method := range []string{"courier", "pickup", "unknown"} {
				if got := ComputeTotals(cart, method, promo, testCatalog, 5000); got.TotalCents < 0 {
					t.Fatalf("negative total %d for cart=%v method=%s", got.TotalCents, cart, method)
				}
			}
		}
	}
}

func TestComputeTotalsUnknownMethodIsFree(t *testing.T) {
	t.Parallel()

	lines := []CartLine{{ProductID: "p1", Quantity: 1, UnitPriceCents: 700}}
	got := ComputeTotals(lines, "drone", nil, testCatalog, 5000)
	if got.DeliveryFeeCents != 0 || got.TotalCents != 700 {
		t.Fatalf("unexpected breakdown %+v", got)
	}
}

func TestComputeTotalsIsDeterministic(t *testing.T) {
	t.Parallel()

	lines := []CartLine{{ProductID: "p1", Quantity: 2, UnitPriceCents: 1234}, {ProductID: "p2", Quantity: 1, UnitPriceCents: 99}}
	promo := &AppliedPromo{Type: enums.DiscountTypePercentage, Value: decimal.NewFromInt(15)}
	first := ComputeTotals(lines, "courier", promo, testCatalog, 5000)
	second := ComputeTotals(lines, "courier", promo, testCatalog, 5000)
	if first != second {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestMemoRecomputesOnlyWhenInputsChange(t *testing.T) {
	t.Parallel()

	var memo Memo
	lines := []CartLine{{ProductID: "p1", Quantity: 2, UnitPriceCents: 1000}}

	first := memo.Compute(lines, "courier", nil, testCatalog, 5000)
	if first.TotalCents != 2300 {
		t.Fatalf("expected 2300 got %d", first.TotalCents)
	}
	cachedKey := memo.key

	again := memo.Compute(lines, "courier", nil, testCatalog, 5000)
	if again != first || memo.key != cachedKey {
		t.Fatalf("expected cached breakdown")
	}

	switched := memo.Compute(lines, "pickup", nil, testCatalog, 5000)
	if switched.TotalCents != 2000 {
		t.Fatalf("expected recompute for new method, got %d", switched.TotalCents)
	}

	promo := &AppliedPromo{Type: enums.DiscountTypeAmount, Value: decimal.NewFromInt(500)}
	withPromo := memo.Compute(lines, "pickup", promo, testCatalog, 5000)
	if withPromo.TotalCents != 1500 {
		t.Fatalf("expected recompute for new promo, got %d", withPromo.TotalCents)
	}
}
