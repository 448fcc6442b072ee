package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/settings"
	pkgcheckout "github.com/angelmondragon/storefront-checkout/pkg/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const (
	maxNotesLen   = 1000
	maxAddressLen = 500
)

// CreateOrder persists a storefront order in the commerce backend. Totals are
// re-priced against the server catalog and a mismatch with the client quote is
// rejected before anything is written.
func CreateOrder(svc orders.Service, provider settings.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		if provider == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings provider unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := payload.cartLines()
		if err := pkgcheckout.ValidateLines(lines); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		catalog, err := provider.Catalog(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load checkout settings"))
			return
		}

		header, err := payload.header(catalog, lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		header.UserID = middleware.CustomerIDFromContext(r.Context())

		// Once the header is written the lines, link and verification must
		// finish even if the buyer disconnects. Commerce calls keep their own
		// timeouts.
		result, err := svc.CreateOrder(context.WithoutCancel(r.Context()), header, lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCreateOrderResponse(result, header))
	}
}

type createOrderRequest struct {
	OrderNumber      string            `json:"order_number" validate:"required,max=32"`
	Customer         customerRequest   `json:"customer" validate:"required"`
	DeliveryMethodID string            `json:"delivery_method_id" validate:"required"`
	PaymentMethodID  string            `json:"payment_method_id" validate:"required"`
	DeliveryAddress  string            `json:"delivery_address,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	PromoCode        string            `json:"promo_code,omitempty"`
	Lines            []lineRequest     `json:"lines" validate:"required,min=1,dive"`
	Totals           pricing.Breakdown `json:"totals"`
}

type customerRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required,phone"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

type lineRequest struct {
	ProductID      string `json:"product_id" validate:"required"`
	ProductName    string `json:"product_name" validate:"required"`
	Size           string `json:"size,omitempty"`
	Quantity       int    `json:"quantity" validate:"gt=0"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gt=0"`
}

func (p createOrderRequest) cartLines() []pricing.CartLine {
	lines := make([]pricing.CartLine, 0, len(p.Lines))
	for _, line := range p.Lines {
		lines = append(lines, pricing.CartLine{
			ProductID:      strings.TrimSpace(line.ProductID),
			ProductName:    validators.SanitizeString(line.ProductName, 200),
			Size:           strings.TrimSpace(line.Size),
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}
	return lines
}

func (p createOrderRequest) header(catalog *settings.Catalog, lines []pricing.CartLine) (orders.OrderHeader, error) {
	if _, ok := catalog.DeliveryMethod(p.DeliveryMethodID); !ok {
		return orders.OrderHeader{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery method").
			WithDetails(map[string]any{"delivery_method_id": p.DeliveryMethodID})
	}
	method, ok := catalog.PaymentMethod(p.PaymentMethodID)
	if !ok {
		return orders.OrderHeader{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method").
			WithDetails(map[string]any{"payment_method_id": p.PaymentMethodID})
	}

	var promo *pricing.AppliedPromo
	if code := strings.TrimSpace(p.PromoCode); code != "" {
		found, ok := catalog.FindPromo(code)
		if !ok {
			return orders.OrderHeader{}, pkgerrors.New(pkgerrors.CodeValidation, "promo code is not active").
				WithDetails(map[string]any{"promo_code": code})
		}
		promo = found
	}

	totals := pricing.ComputeTotals(lines, p.DeliveryMethodID, promo, catalog.DeliveryCatalog(), catalog.FreeDeliveryThresholdCents)
	if totals.TotalCents <= 0 {
		return orders.OrderHeader{}, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}
	if p.Totals.TotalCents != 0 && p.Totals != totals {
		return orders.OrderHeader{}, pkgerrors.New(pkgerrors.CodeConflict, "order totals changed, refresh the quote").
			WithDetails(map[string]any{"expected": totals, "submitted": p.Totals})
	}

	header := orders.OrderHeader{
		OrderNumber: strings.TrimSpace(p.OrderNumber),
		Customer: orders.Customer{
			Name:  validators.SanitizeString(p.Customer.Name, 200),
			Phone: strings.TrimSpace(p.Customer.Phone),
			Email: strings.TrimSpace(p.Customer.Email),
		},
		DeliveryMethodID: p.DeliveryMethodID,
		PaymentMethodID:  p.PaymentMethodID,
		DeliveryAddress:  validators.SanitizeString(p.DeliveryAddress, maxAddressLen),
		Notes:            validators.SanitizeString(p.Notes, maxNotesLen),
		Totals:           totals,
		OrderStatus:      enums.OrderStatusPending,
		PaymentStatus:    enums.InitialPaymentStatus(method.Kind),
	}
	if promo != nil {
		header.PromoCode = promo.Code
	}
	return header, nil
}

type createOrderResponse struct {
	OrderID       string            `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	Lines         orders.LineCounts `json:"lines"`
	Linked        bool              `json:"linked"`
	LinkStrategy  string            `json:"link_strategy,omitempty"`
	Verified      bool              `json:"verified"`
	PaymentStatus string            `json:"payment_status"`
	Totals        pricing.Breakdown `json:"totals"`
}

func newCreateOrderResponse(result *orders.Result, header orders.OrderHeader) createOrderResponse {
	resp := createOrderResponse{
		OrderID:       result.OrderID,
		OrderNumber:   result.OrderNumber,
		Lines:         result.Counts(),
		Linked:        result.Linked(),
		Verified:      result.Verified(),
		PaymentStatus: header.PaymentStatus.String(),
		Totals:        header.Totals,
	}
	if result.Link != nil {
		resp.LinkStrategy = result.Link.String()
	}
	return resp
}
