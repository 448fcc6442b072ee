package pricing

import (
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CartLine is the immutable snapshot of one cart entry taken at submission time.
type CartLine struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Size           string `json:"size"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// LineTotalCents returns price × quantity, or 0 for lines that failed edge validation.
func (l CartLine) LineTotalCents() int64 {
	if l.Quantity <= 0 || l.UnitPriceCents <= 0 {
		return 0
	}
	return l.UnitPriceCents * int64(l.Quantity)
}

// AppliedPromo is the single promo code active for a checkout session.
// Value is in cents for amount promos and in percent for percentage promos.
type AppliedPromo struct {
	Code  string             `json:"code"`
	Type  enums.DiscountType `json:"discount_type"`
	Value decimal.Decimal    `json:"value"`
}

// DeliveryCatalog maps delivery method ids to their base price in cents.
type DeliveryCatalog map[string]int64

// Breakdown is the computed price of a cart.
type Breakdown struct {
	SubtotalCents      int64 `json:"subtotal_cents"`
	DeliveryFeeCents   int64 `json:"delivery_fee_cents"`
	PromoDiscountCents int64 `json:"promo_discount_cents"`
	TotalCents         int64 `json:"total_cents"`
}

// ComputeTotals prices a cart. It is pure: identical inputs always yield the
// same breakdown. Unknown delivery methods cost nothing, and a threshold of 0
// disables free delivery.
func ComputeTotals(lines []CartLine, deliveryMethodID string, promo *AppliedPromo, catalog DeliveryCatalog, freeDeliveryThresholdCents int64) Breakdown {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.LineTotalCents()
	}

	basePrice := catalog[deliveryMethodID]
	if basePrice < 0 {
		basePrice = 0
	}
	deliveryFee := basePrice
	if freeDeliveryThresholdCents > 0 && subtotal >= freeDeliveryThresholdCents && basePrice > 0 {
		deliveryFee = 0
	}

	discount := promoDiscount(promo, subtotal, basePrice)

	total := subtotal + deliveryFee - discount
	if total < 0 {
		total = 0
	}

	return Breakdown{
		SubtotalCents:      subtotal,
		DeliveryFeeCents:   deliveryFee,
		PromoDiscountCents: discount,
		TotalCents:         total,
	}
}

// promoDiscount uses the pre-override base price for free_shipping, so the
// discount equals the method's list price even when the threshold already
// zeroed the fee.
func promoDiscount(promo *AppliedPromo, subtotal, baseDeliveryPrice int64) int64 {
	if promo == nil {
		return 0
	}
	switch promo.Type {
	case enums.DiscountTypeAmount:
		value := promo.Value.Round(0).IntPart()
		if value <= 0 {
			return 0
		}
		if value > subtotal {
			return subtotal
		}
		return value
	case enums.DiscountTypePercentage:
		if !promo.Value.IsPositive() {
			return 0
		}
		return decimal.NewFromInt(subtotal).Mul(promo.Value).Div(hundred).Floor().IntPart()
	case enums.DiscountTypeFreeShipping:
		return baseDeliveryPrice
	default:
		return 0
	}
}
