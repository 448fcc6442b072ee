package checkout

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/settings"
	pkgcheckout "github.com/angelmondragon/storefront-checkout/pkg/checkout"
)

// validateInput checks everything that can be decided without the network.
func validateInput(in Input, lines []pricing.CartLine) *ValidationError {
	verr := &ValidationError{}
	if strings.TrimSpace(in.Customer.Name) == "" {
		verr.add("customer.name", "is required")
	}
	phone := strings.TrimSpace(in.Customer.Phone)
	switch {
	case phone == "":
		verr.add("customer.phone", "is required")
	case !pkgcheckout.ValidPhone(phone):
		verr.add("customer.phone", "must be a valid phone number")
	}
	if email := strings.TrimSpace(in.Customer.Email); email != "" && !pkgcheckout.ValidEmail(email) {
		verr.add("customer.email", "must be a valid email")
	}
	if strings.TrimSpace(in.DeliveryMethodID) == "" {
		verr.add("delivery_method_id", "is required")
	}
	if strings.TrimSpace(in.PaymentMethodID) == "" {
		verr.add("payment_method_id", "is required")
	}
	if len(lines) == 0 {
		verr.add("lines", "cart is empty")
	}
	for i, line := range lines {
		if line.Quantity <= 0 {
			verr.add(fmt.Sprintf("lines[%d].quantity", i), "must be greater than 0")
		}
		if line.UnitPriceCents <= 0 {
			verr.add(fmt.Sprintf("lines[%d].unit_price_cents", i), "must be greater than 0")
		}
		if strings.TrimSpace(line.ProductID) == "" {
			verr.add(fmt.Sprintf("lines[%d].product_id", i), "is required")
		}
	}
	if verr.empty() {
		return nil
	}
	return verr
}

// validateAgainstCatalog checks the selected methods exist and the priced
// total is positive.
func validateAgainstCatalog(in Input, catalog *settings.Catalog, totals pricing.Breakdown) *ValidationError {
	verr := &ValidationError{}
	if _, ok := catalog.DeliveryMethod(in.DeliveryMethodID); !ok {
		verr.add("delivery_method_id", "is not offered")
	}
	if _, ok := catalog.PaymentMethod(in.PaymentMethodID); !ok {
		verr.add("payment_method_id", "is not offered")
	}
	if totals.TotalCents <= 0 {
		verr.add("total", "must be greater than 0")
	}
	if verr.empty() {
		return nil
	}
	return verr
}
