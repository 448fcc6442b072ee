package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const idempotencyHeader = "Idempotency-Key"

// InitiatePayment creates a hosted checkout page for an existing order. The
// inbound Idempotency-Key is reused for the gateway call so replays of the same
// attempt never open a second payment link.
func InitiatePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload initiatePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initiate(r.Context(), payments.Request{
			OrderID:     strings.TrimSpace(payload.OrderID),
			OrderNumber: strings.TrimSpace(payload.OrderNumber),
			AmountCents: payload.AmountCents,
			Customer: orders.Customer{
				Name:  strings.TrimSpace(payload.Customer.Name),
				Phone: strings.TrimSpace(payload.Customer.Phone),
				Email: strings.TrimSpace(payload.Customer.Email),
			},
			Description:    validators.SanitizeString(payload.Description, 255),
			ReturnURL:      strings.TrimSpace(payload.ReturnURL),
			LineItems:      payload.LineItems,
			IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyHeader)),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ReportPaymentFailure records a failure the client hit after the order was
// created. The order is left untouched.
func ReportPaymentFailure(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload paymentFailureRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reason := validators.SanitizeString(payload.Reason, 500)
		if err := svc.ReportFailure(r.Context(), strings.TrimSpace(payload.OrderID), strings.TrimSpace(payload.OrderNumber), reason); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]bool{"recorded": true})
	}
}

type initiatePaymentRequest struct {
	OrderID     string              `json:"order_id" validate:"required"`
	OrderNumber string              `json:"order_number" validate:"required"`
	AmountCents int64               `json:"amount_cents" validate:"gt=0"`
	Customer    customerRequest     `json:"customer" validate:"required"`
	Description string              `json:"description,omitempty"`
	ReturnURL   string              `json:"return_url" validate:"required,url"`
	LineItems   []payments.LineItem `json:"line_items,omitempty" validate:"omitempty,dive"`
}

type paymentFailureRequest struct {
	OrderID     string `json:"order_id" validate:"required"`
	OrderNumber string `json:"order_number,omitempty"`
	Reason      string `json:"reason" validate:"required"`
}
