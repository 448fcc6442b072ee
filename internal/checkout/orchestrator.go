package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/settings"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const failureReportTimeout = 5 * time.Second

// OrderAPI is the storefront API surface the saga drives.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req OrderRequest, idempotencyKey string) (*OrderReceipt, error)
	InitiatePayment(ctx context.Context, req PaymentRequest, idempotencyKey string) (*PaymentRedirect, error)
	ReportPaymentFailure(ctx context.Context, failure PaymentFailure, idempotencyKey string) error
}

// Input is what the buyer filled in on the checkout form.
type Input struct {
	Customer         orders.Customer
	DeliveryMethodID string
	PaymentMethodID  string
	DeliveryAddress  string
	Notes            string
}

// Outcome reports how a submission attempt ended. OrderID is kept on payment
// failures so the pending order can be traced.
type Outcome struct {
	State           State
	Reason          Reason
	Err             error
	OrderID         string
	OrderNumber     string
	Totals          pricing.Breakdown
	Receipt         *OrderReceipt
	PaymentID       string
	ConfirmationURL string
}

// Failed reports whether the attempt ended in the Failed state.
func (o Outcome) Failed() bool {
	return o.State == StateFailed
}

type Options struct {
	ReturnURL    string
	OrderNumbers *OrderNumbers
	NewKey       func() string
	Logger       *logger.Logger
}

// Orchestrator runs the client checkout saga: validate, create the order,
// then either complete directly or hand off to the hosted payment page.
// There is no compensation: a payment failure leaves the pending order behind.
type Orchestrator struct {
	api       OrderAPI
	settings  settings.Provider
	cart      CartStore
	returnURL string
	numbers   *OrderNumbers
	newKey    func() string
	logg      *logger.Logger

	inFlight  atomic.Bool
	abandoned atomic.Bool

	mu    sync.Mutex
	state State
	promo *pricing.AppliedPromo
	memo  pricing.Memo
}

func NewOrchestrator(api OrderAPI, provider settings.Provider, cart CartStore, opts Options) (*Orchestrator, error) {
	if api == nil {
		return nil, fmt.Errorf("order api required")
	}
	if provider == nil {
		return nil, fmt.Errorf("settings provider required")
	}
	if cart == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if strings.TrimSpace(opts.ReturnURL) == "" {
		return nil, fmt.Errorf("return url required")
	}
	numbers := opts.OrderNumbers
	if numbers == nil {
		numbers = NewOrderNumbers(defaultOrderNumberPrefix)
	}
	newKey := opts.NewKey
	if newKey == nil {
		newKey = func() string { return uuid.NewString() }
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Orchestrator{
		api:       api,
		settings:  provider,
		cart:      cart,
		returnURL: strings.TrimSpace(opts.ReturnURL),
		numbers:   numbers,
		newKey:    newKey,
		logg:      logg,
		state:     StateIdle,
	}, nil
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// ApplyPromo looks the code up in the catalog and makes it the single active promo.
func (o *Orchestrator) ApplyPromo(ctx context.Context, code string) (*pricing.AppliedPromo, error) {
	catalog, err := o.settings.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	promo, ok := catalog.FindPromo(code)
	if !ok {
		return nil, &ValidationError{Fields: map[string]string{"promo_code": "is not active"}}
	}
	o.mu.Lock()
	o.promo = promo
	o.mu.Unlock()
	return promo, nil
}

func (o *Orchestrator) RemovePromo() {
	o.mu.Lock()
	o.promo = nil
	o.mu.Unlock()
}

func (o *Orchestrator) AppliedPromo() *pricing.AppliedPromo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.promo
}

// Quote prices the current cart with the applied promo.
func (o *Orchestrator) Quote(ctx context.Context, deliveryMethodID string) (pricing.Breakdown, error) {
	lines, err := o.cart.Lines(ctx)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	catalog, err := o.settings.Catalog(ctx)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return o.memo.Compute(lines, deliveryMethodID, o.AppliedPromo(), catalog.DeliveryCatalog(), catalog.FreeDeliveryThresholdCents), nil
}

// Reset returns a finished attempt to Idle so the buyer can try again.
func (o *Orchestrator) Reset() error {
	if o.inFlight.Load() {
		return ErrSubmissionInProgress
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateIdle {
		return nil
	}
	if !o.state.IsTerminal() {
		return fmt.Errorf("cannot reset from %s", o.state)
	}
	o.state = StateIdle
	o.abandoned.Store(false)
	return nil
}

// Abandon cancels a checkout that has not yet reached the backend.
func (o *Orchestrator) Abandon() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case StateIdle:
		o.promo = nil
		o.memo.Invalidate()
		return nil
	case StateValidating:
		o.abandoned.Store(true)
		return nil
	}
	return ErrCannotAbandon
}

// Submit runs one submission attempt. Only ErrSubmissionInProgress and
// ErrNotIdle are returned as errors; everything else is reported in the Outcome.
func (o *Orchestrator) Submit(ctx context.Context, in Input) (out Outcome, err error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return Outcome{State: o.State()}, ErrSubmissionInProgress
	}
	defer o.inFlight.Store(false)

	if state := o.State(); state != StateIdle {
		return Outcome{State: state}, fmt.Errorf("%w: %s", ErrNotIdle, state)
	}

	defer func() {
		if r := recover(); r != nil {
			out = o.fail(ctx, out, ReasonUnexpected, fmt.Errorf("checkout panic: %v", r))
			err = nil
		}
	}()

	return o.run(ctx, in), nil
}

func (o *Orchestrator) run(ctx context.Context, in Input) Outcome {
	out := Outcome{}
	o.transition(ctx, StateValidating)

	// A promo is consumed by the attempt that uses it.
	o.mu.Lock()
	promo := o.promo
	o.promo = nil
	o.mu.Unlock()

	lines, err := o.cart.Lines(ctx)
	if err != nil {
		return o.fail(ctx, out, ReasonUnexpected, fmt.Errorf("load cart: %w", err))
	}
	if verr := validateInput(in, lines); verr != nil {
		return o.fail(ctx, out, ReasonValidation, verr)
	}

	catalog, err := o.settings.Catalog(ctx)
	if err != nil {
		return o.fail(ctx, out, ReasonSettings, err)
	}
	out.Totals = o.memo.Compute(lines, in.DeliveryMethodID, promo, catalog.DeliveryCatalog(), catalog.FreeDeliveryThresholdCents)
	if verr := validateAgainstCatalog(in, catalog, out.Totals); verr != nil {
		return o.fail(ctx, out, ReasonValidation, verr)
	}
	method, _ := catalog.PaymentMethod(in.PaymentMethodID)

	if o.abandoned.Swap(false) {
		o.transition(ctx, StateIdle)
		out.State = StateIdle
		out.Reason = ReasonAbandoned
		return out
	}

	// From here on the order may exist in the backend; caller cancellation no
	// longer stops the saga and each call relies on its own timeout.
	o.transition(ctx, StateCreatingOrder)
	ctx = context.WithoutCancel(ctx)

	req := OrderRequest{
		OrderNumber:      o.numbers.Next(),
		Customer:         trimCustomer(in.Customer),
		DeliveryMethodID: in.DeliveryMethodID,
		PaymentMethodID:  in.PaymentMethodID,
		DeliveryAddress:  strings.TrimSpace(in.DeliveryAddress),
		Notes:            strings.TrimSpace(in.Notes),
		Lines:            lines,
		Totals:           out.Totals,
	}
	if promo != nil {
		req.PromoCode = promo.Code
	}
	out.OrderNumber = req.OrderNumber
	ctx = o.logg.WithOrderNumber(ctx, req.OrderNumber)

	receipt, err := o.api.CreateOrder(ctx, req, o.newKey())
	if err != nil {
		return o.fail(ctx, out, ReasonOrder, err)
	}
	out.Receipt = receipt
	out.OrderID = receipt.OrderID
	ctx = o.logg.WithOrderID(ctx, receipt.OrderID)

	if method.Kind.RequiresGateway() {
		if receipt.OrderID == "" {
			return o.fail(ctx, out, ReasonOrder, ErrMissingOrderID)
		}
		return o.initiatePayment(ctx, out, req)
	}
	return o.completeDirect(ctx, out)
}

func (o *Orchestrator) completeDirect(ctx context.Context, out Outcome) Outcome {
	o.transition(ctx, StateCompletingDirect)
	if err := o.cart.Clear(ctx); err != nil {
		o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "checkout.cart.clear_failed")
	}
	o.memo.Invalidate()
	o.transition(ctx, StateCompleted)
	out.State = StateCompleted
	o.logg.Info(ctx, "checkout.completed")
	return out
}

// initiatePayment hands off to the hosted gateway. The cart is kept until the
// buyer returns from the payment page.
func (o *Orchestrator) initiatePayment(ctx context.Context, out Outcome, req OrderRequest) Outcome {
	o.transition(ctx, StateInitiatingPayment)

	redirect, err := o.api.InitiatePayment(ctx, PaymentRequest{
		OrderID:     out.OrderID,
		OrderNumber: req.OrderNumber,
		AmountCents: out.Totals.TotalCents,
		Customer:    req.Customer,
		Description: "Order " + req.OrderNumber,
		ReturnURL:   o.returnURL,
		LineItems:   paymentLines(req.Lines),
	}, o.newKey())
	if err == nil && strings.TrimSpace(redirect.ConfirmationURL) == "" {
		err = errors.New("payment response did not include a confirmation url")
	}
	if err != nil {
		o.reportPaymentFailure(ctx, out, err)
		return o.fail(ctx, out, ReasonPayment, err)
	}

	o.transition(ctx, StateRedirecting)
	out.State = StateRedirecting
	out.PaymentID = redirect.PaymentID
	out.ConfirmationURL = redirect.ConfirmationURL
	o.logg.Info(o.logg.WithField(ctx, "payment_id", redirect.PaymentID), "checkout.redirecting")
	return out
}

func (o *Orchestrator) reportPaymentFailure(ctx context.Context, out Outcome, cause error) {
	reportCtx, cancel := context.WithTimeout(ctx, failureReportTimeout)
	defer cancel()
	err := o.api.ReportPaymentFailure(reportCtx, PaymentFailure{
		OrderID:     out.OrderID,
		OrderNumber: out.OrderNumber,
		Reason:      cause.Error(),
	}, o.newKey())
	if err != nil {
		o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "checkout.payment_failure.report_failed")
	}
}

func (o *Orchestrator) fail(ctx context.Context, out Outcome, reason Reason, err error) Outcome {
	o.mu.Lock()
	from := o.state
	o.state = StateFailed
	o.mu.Unlock()

	out.State = StateFailed
	out.Reason = reason
	out.Err = err
	o.logg.Warn(o.logg.WithFields(ctx, map[string]any{
		"from":   string(from),
		"reason": string(reason),
		"error":  err.Error(),
	}), "checkout.failed")
	return out
}

// transition panics on an edge missing from the table; Submit recovers it
// into Failed(unexpected).
func (o *Orchestrator) transition(ctx context.Context, to State) {
	o.mu.Lock()
	from := o.state
	if !from.CanTransitionTo(to) {
		o.mu.Unlock()
		panic(fmt.Sprintf("invalid checkout transition %s -> %s", from, to))
	}
	o.state = to
	o.mu.Unlock()
	o.logg.Debug(o.logg.WithFields(ctx, map[string]any{"from": string(from), "to": string(to)}), "checkout.transition")
}

func trimCustomer(c orders.Customer) orders.Customer {
	return orders.Customer{
		Name:  strings.TrimSpace(c.Name),
		Phone: strings.TrimSpace(c.Phone),
		Email: strings.TrimSpace(c.Email),
	}
}

func paymentLines(lines []pricing.CartLine) []PaymentLine {
	out := make([]PaymentLine, 0, len(lines))
	for _, line := range lines {
		name := line.ProductName
		if size := strings.TrimSpace(line.Size); size != "" {
			name += " (" + size + ")"
		}
		out = append(out, PaymentLine{Name: name, Quantity: line.Quantity, UnitPriceCents: line.UnitPriceCents})
	}
	return out
}
