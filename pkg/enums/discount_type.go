package enums

import (
	"fmt"
	"strings"
)

// DiscountType describes how a promo code reduces the order total.
type DiscountType string

const (
	DiscountTypeAmount       DiscountType = "amount"
	DiscountTypePercentage   DiscountType = "percentage"
	DiscountTypeFreeShipping DiscountType = "free_shipping"
)

var validDiscountTypes = []DiscountType{
	DiscountTypeAmount,
	DiscountTypePercentage,
	DiscountTypeFreeShipping,
}

// String implements fmt.Stringer.
func (d DiscountType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountType.
func (d DiscountType) IsValid() bool {
	for _, candidate := range validDiscountTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountType converts raw input into a DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validDiscountTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount type %q", value)
}

// UnmarshalText lets settings files carry discount types as plain strings.
func (d *DiscountType) UnmarshalText(text []byte) error {
	parsed, err := ParseDiscountType(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
