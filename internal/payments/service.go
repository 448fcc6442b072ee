package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/square"
)

// Gateway creates hosted checkout pages.
type Gateway interface {
	CreatePaymentLink(ctx context.Context, params square.PaymentLinkParams) (*square.PaymentLink, error)
}

// Ledger tracks payment hand-offs against the checkout attempt. OrderTotal
// reports the total the API priced when the order was created.
type Ledger interface {
	OrderTotal(ctx context.Context, orderID string) (int64, bool, error)
	RecordPaymentInitiated(ctx context.Context, orderID, paymentID string) error
	RecordPaymentFailure(ctx context.Context, orderID, orderNumber, reason string) error
}

type LineItem struct {
	Name           string `json:"name" validate:"required"`
	Quantity       int    `json:"quantity" validate:"gt=0"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gt=0"`
}

// Request initiates payment for an order that already exists in the backend.
type Request struct {
	OrderID        string
	OrderNumber    string
	AmountCents    int64
	Customer       orders.Customer
	Description    string
	ReturnURL      string
	LineItems      []LineItem
	IdempotencyKey string
}

type Result struct {
	PaymentID       string `json:"payment_id"`
	ConfirmationURL string `json:"confirmation_url"`
}

type Service interface {
	Initiate(ctx context.Context, req Request) (*Result, error)
	ReportFailure(ctx context.Context, orderID, orderNumber, reason string) error
}

type service struct {
	gateway Gateway
	ledger  Ledger
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

// NewService wires payment initiation. A nil gateway leaves hosted payments
// disabled: every initiation fails with a payment error.
func NewService(gateway Gateway, ledger Ledger, m *metrics.CheckoutMetrics, logg *logger.Logger) (Service, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{gateway: gateway, ledger: ledger, metrics: m, logg: logg}, nil
}

// Initiate never touches the order on failure. The pending order stays in the
// backend and the failure is written to the ledger.
func (s *service) Initiate(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(s.logg.WithOrderNumber(ctx, req.OrderNumber), req.OrderID)

	if err := s.checkAmount(ctx, req); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "amount_cents", req.AmountCents), "payment.amount_rejected")
		return nil, err
	}

	if s.gateway == nil {
		err := pkgerrors.New(pkgerrors.CodePayment, "hosted payments are not configured")
		s.fail(ctx, req, err)
		return nil, err
	}

	link, err := s.gateway.CreatePaymentLink(ctx, square.PaymentLinkParams{
		AmountCents:    req.AmountCents,
		OrderID:        req.OrderID,
		OrderNumber:    req.OrderNumber,
		Description:    req.Description,
		ReturnURL:      req.ReturnURL,
		BuyerEmail:     req.Customer.Email,
		BuyerPhone:     req.Customer.Phone,
		LineItems:      squareLineItems(req.LineItems),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		mapped := classify(err)
		s.fail(ctx, req, mapped)
		return nil, mapped
	}

	s.metrics.IncPayment(true)
	if s.ledger != nil {
		if err := s.ledger.RecordPaymentInitiated(ctx, req.OrderID, link.ID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "payment.audit.failed")
		}
	}
	s.logg.Info(s.logg.WithField(ctx, "payment_id", link.ID), "payment.initiated")
	return &Result{PaymentID: link.ID, ConfirmationURL: link.URL}, nil
}

// checkAmount only lets a link open for the total this API priced for the
// order. Without a ledger nothing can be compared.
func (s *service) checkAmount(ctx context.Context, req Request) error {
	if s.ledger == nil {
		return nil
	}
	total, ok, err := s.ledger.OrderTotal(ctx, req.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order total")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"order_id": req.OrderID})
	}
	if total != req.AmountCents {
		return pkgerrors.New(pkgerrors.CodeConflict, "payment amount does not match the order total").
			WithDetails(map[string]any{"order_id": req.OrderID, "expected_cents": total, "amount_cents": req.AmountCents})
	}
	return nil
}

// ReportFailure records a failure the client observed on its side of the hand-off.
func (s *service) ReportFailure(ctx context.Context, orderID, orderNumber, reason string) error {
	if strings.TrimSpace(orderID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if s.ledger == nil {
		return nil
	}
	return s.ledger.RecordPaymentFailure(ctx, orderID, orderNumber, reason)
}

func (s *service) fail(ctx context.Context, req Request, err error) {
	s.metrics.IncPayment(false)
	s.logg.Error(ctx, "payment.initiation.failed", err)
	if s.ledger == nil {
		return
	}
	if recErr := s.ledger.RecordPaymentFailure(ctx, req.OrderID, req.OrderNumber, err.Error()); recErr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", recErr.Error()), "payment.audit.failed")
	}
}

func classify(err error) error {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeValidation, pkgerrors.CodeTimeout, pkgerrors.CodePayment:
		return err
	default:
		return pkgerrors.Wrap(pkgerrors.CodePayment, err, "payment initiation failed")
	}
}

func validateRequest(req Request) error {
	var missing []string
	if strings.TrimSpace(req.OrderID) == "" {
		missing = append(missing, "order_id")
	}
	if req.AmountCents <= 0 {
		missing = append(missing, "amount_cents")
	}
	if strings.TrimSpace(req.ReturnURL) == "" {
		missing = append(missing, "return_url")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment request").
			WithDetails(map[string]any{"fields": missing})
	}
	return nil
}

func squareLineItems(items []LineItem) []square.LineItem {
	out := make([]square.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, square.LineItem{
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return out
}
