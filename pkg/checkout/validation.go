package checkout

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// phonePattern is permissive: an optional leading +, then digits
// with spaces, dashes, dots or parentheses.
var phonePattern = regexp.MustCompile(`^\+?[0-9(][0-9 ().-]{5,22}[0-9]$`)

const minPhoneDigits = 7

// ValidPhone reports whether raw looks like a reachable phone number.
func ValidPhone(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if !phonePattern.MatchString(trimmed) {
		return false
	}
	digits := 0
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= minPhoneDigits
}

// ValidEmail accepts a bare address. Empty input is invalid; callers treat
// email as optional before calling.
func ValidEmail(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	addr, err := mail.ParseAddress(trimmed)
	return err == nil && addr.Address == trimmed
}

// LineViolationDetail exposes the data returned to callers when a line fails validation.
type LineViolationDetail struct {
	Index          int    `json:"index"`
	ProductID      string `json:"product_id,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// ValidateLines ensures the cart is non-empty and every line has a positive
// quantity and price.
func ValidateLines(lines []pricing.CartLine) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	var violations []LineViolationDetail
	for i, line := range lines {
		if line.Quantity > 0 && line.UnitPriceCents > 0 && strings.TrimSpace(line.ProductID) != "" {
			continue
		}
		violations = append(violations, LineViolationDetail{
			Index:          i,
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%d cart line(s) are invalid", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
