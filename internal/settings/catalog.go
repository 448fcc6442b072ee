package settings

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/shopspring/decimal"
)

type DeliveryMethod struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	BasePriceCents int64  `json:"base_price_cents"`
}

type PaymentMethod struct {
	ID    string                  `json:"id"`
	Label string                  `json:"label"`
	Kind  enums.PaymentMethodKind `json:"kind"`
}

type PromoCode struct {
	Code         string             `json:"code"`
	DiscountType enums.DiscountType `json:"discount_type"`
	Value        decimal.Decimal    `json:"value"`
	Active       bool               `json:"active"`
}

// Catalog is the read-only checkout configuration: delivery methods, payment
// methods, promo codes and the free-delivery threshold.
type Catalog struct {
	Currency                   string           `json:"currency"`
	FreeDeliveryThresholdCents int64            `json:"free_delivery_threshold_cents"`
	DeliveryMethods            []DeliveryMethod `json:"delivery_methods"`
	PaymentMethods             []PaymentMethod  `json:"payment_methods"`
	PromoCodes                 []PromoCode      `json:"promo_codes"`
}

func (c *Catalog) DeliveryMethod(id string) (DeliveryMethod, bool) {
	if c == nil {
		return DeliveryMethod{}, false
	}
	for _, method := range c.DeliveryMethods {
		if method.ID == id {
			return method, true
		}
	}
	return DeliveryMethod{}, false
}

func (c *Catalog) PaymentMethod(id string) (PaymentMethod, bool) {
	if c == nil {
		return PaymentMethod{}, false
	}
	for _, method := range c.PaymentMethods {
		if method.ID == id {
			return method, true
		}
	}
	return PaymentMethod{}, false
}

// FindPromo matches codes case-insensitively and ignores inactive codes.
func (c *Catalog) FindPromo(code string) (*pricing.AppliedPromo, bool) {
	if c == nil {
		return nil, false
	}
	needle := strings.TrimSpace(code)
	if needle == "" {
		return nil, false
	}
	for _, promo := range c.PromoCodes {
		if !promo.Active || !strings.EqualFold(promo.Code, needle) {
			continue
		}
		return &pricing.AppliedPromo{
			Code:  promo.Code,
			Type:  promo.DiscountType,
			Value: promo.Value,
		}, true
	}
	return nil, false
}

// DeliveryCatalog returns the id -> base price view consumed by the calculator.
func (c *Catalog) DeliveryCatalog() pricing.DeliveryCatalog {
	out := pricing.DeliveryCatalog{}
	if c == nil {
		return out
	}
	for _, method := range c.DeliveryMethods {
		out[method.ID] = method.BasePriceCents
	}
	return out
}

// Validate rejects catalogs the calculator cannot price safely.
func (c *Catalog) Validate() error {
	if c == nil {
		return fmt.Errorf("catalog is required")
	}
	if c.FreeDeliveryThresholdCents < 0 {
		return fmt.Errorf("free delivery threshold must not be negative")
	}
	if len(c.DeliveryMethods) == 0 {
		return fmt.Errorf("at least one delivery method is required")
	}
	if len(c.PaymentMethods) == 0 {
		return fmt.Errorf("at least one payment method is required")
	}

	seen := map[string]bool{}
	for _, method := range c.DeliveryMethods {
		if strings.TrimSpace(method.ID) == "" {
			return fmt.Errorf("delivery method id is required")
		}
		if seen["delivery:"+method.ID] {
			return fmt.Errorf("duplicate delivery method %q", method.ID)
		}
		seen["delivery:"+method.ID] = true
		if method.BasePriceCents < 0 {
			return fmt.Errorf("delivery method %q has negative base price", method.ID)
		}
	}
	for _, method := range c.PaymentMethods {
		if strings.TrimSpace(method.ID) == "" {
			return fmt.Errorf("payment method id is required")
		}
		if seen["payment:"+method.ID] {
			return fmt.Errorf("duplicate payment method %q", method.ID)
		}
		seen["payment:"+method.ID] = true
		if !method.Kind.IsValid() {
			return fmt.Errorf("payment method %q has invalid kind %q", method.ID, method.Kind)
		}
	}
	for _, promo := range c.PromoCodes {
		key := "promo:" + strings.ToLower(strings.TrimSpace(promo.Code))
		if key == "promo:" {
			return fmt.Errorf("promo code is required")
		}
		if seen[key] {
			return fmt.Errorf("duplicate promo code %q", promo.Code)
		}
		seen[key] = true
		if !promo.DiscountType.IsValid() {
			return fmt.Errorf("promo %q has invalid discount type %q", promo.Code, promo.DiscountType)
		}
		if promo.Value.IsNegative() {
			return fmt.Errorf("promo %q has negative value", promo.Code)
		}
	}
	return nil
}
