package enums

import (
	"fmt"
	"strings"
)

// PaymentMethodKind separates methods settled in person from methods that
// hand off to the hosted payment gateway.
type PaymentMethodKind string

const (
	PaymentMethodKindOffline PaymentMethodKind = "offline"
	PaymentMethodKindHosted  PaymentMethodKind = "hosted"
)

var validPaymentMethodKinds = []PaymentMethodKind{
	PaymentMethodKindOffline,
	PaymentMethodKindHosted,
}

// String implements fmt.Stringer.
func (k PaymentMethodKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known PaymentMethodKind.
func (k PaymentMethodKind) IsValid() bool {
	for _, candidate := range validPaymentMethodKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// RequiresGateway reports whether the method needs a hosted payment redirect.
func (k PaymentMethodKind) RequiresGateway() bool {
	return k == PaymentMethodKindHosted
}

// ParsePaymentMethodKind converts raw input into a PaymentMethodKind.
func ParsePaymentMethodKind(value string) (PaymentMethodKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentMethodKinds {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method kind %q", value)
}

// UnmarshalText lets settings files carry kinds as plain strings.
func (k *PaymentMethodKind) UnmarshalText(text []byte) error {
	parsed, err := ParsePaymentMethodKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
