package orders

import (
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Customer is the contact captured at checkout.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// OrderHeader is everything the backend needs to create the top-level order
// record. UserID is set only for verified customers; guests leave it empty.
type OrderHeader struct {
	OrderNumber      string
	Customer         Customer
	DeliveryMethodID string
	PaymentMethodID  string
	DeliveryAddress  string
	Notes            string
	PromoCode        string
	Totals           pricing.Breakdown
	OrderStatus      enums.OrderStatus
	PaymentStatus    enums.PaymentStatus
	UserID           string
}

func (h OrderHeader) attributes() map[string]any {
	attrs := map[string]any{
		"orderNumber":    h.OrderNumber,
		"customerName":   h.Customer.Name,
		"customerPhone":  h.Customer.Phone,
		"deliveryMethod": h.DeliveryMethodID,
		"paymentMethod":  h.PaymentMethodID,
		"subtotal":       h.Totals.SubtotalCents,
		"deliveryFee":    h.Totals.DeliveryFeeCents,
		"promoDiscount":  h.Totals.PromoDiscountCents,
		"totalAmount":    h.Totals.TotalCents,
		"orderStatus":    string(h.OrderStatus),
		"paymentStatus":  string(h.PaymentStatus),
	}
	optional := map[string]string{
		"customerEmail":   h.Customer.Email,
		"deliveryAddress": h.DeliveryAddress,
		"notes":           h.Notes,
		"promoCode":       h.PromoCode,
	}
	for key, value := range optional {
		if v := strings.TrimSpace(value); v != "" {
			attrs[key] = v
		}
	}
	if h.UserID != "" {
		attrs["user"] = h.UserID
	}
	return attrs
}

// scalarLine is the relation-free line item payload. It keeps only
// denormalized fields so it is accepted by any backend schema.
func scalarLine(orderID string, line pricing.CartLine) map[string]any {
	return map[string]any{
		"orderId":     orderID,
		"productId":   line.ProductID,
		"productName": line.ProductName,
		"quantity":    line.Quantity,
		"priceAtTime": line.UnitPriceCents,
	}
}

func relationalLine(orderID string, line pricing.CartLine, sizeID string) map[string]any {
	attrs := scalarLine(orderID, line)
	attrs["order"] = orderID
	if line.ProductID != "" {
		attrs["product"] = line.ProductID
	}
	if sizeID != "" {
		attrs["size"] = sizeID
	}
	return attrs
}

// Result describes a persisted order. Link is nil when every strategy failed;
// VerifiedField is empty when no read-back showed the relation.
type Result struct {
	OrderID       string
	OrderNumber   string
	Lines         []LineResult
	Link          *LinkStrategy
	VerifiedField string
}

func (r *Result) Counts() LineCounts {
	if r == nil {
		return LineCounts{}
	}
	return CountLines(r.Lines)
}

func (r *Result) Linked() bool {
	return r != nil && r.Link != nil
}

func (r *Result) Verified() bool {
	return r != nil && r.VerifiedField != ""
}
