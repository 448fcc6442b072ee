package square

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"
)

const maxPaymentNoteLen = 500

// LineItem is a display line included in the payment note.
type LineItem struct {
	Name           string
	Quantity       int
	UnitPriceCents int64
}

// PaymentLinkParams captures the inputs for a hosted checkout page.
type PaymentLinkParams struct {
	AmountCents    int64
	Currency       string
	OrderID        string
	OrderNumber    string
	Description    string
	ReturnURL      string
	BuyerEmail     string
	BuyerPhone     string
	LineItems      []LineItem
	IdempotencyKey string
}

// PaymentLink is the created hosted checkout.
type PaymentLink struct {
	ID      string
	URL     string
	OrderID string
}

func (p PaymentLinkParams) validate() error {
	if p.AmountCents <= 0 {
		return errors.New("amount must be positive")
	}
	if strings.TrimSpace(p.OrderID) == "" {
		return errors.New("order id is required")
	}
	if strings.TrimSpace(p.ReturnURL) == "" {
		return errors.New("return url is required")
	}
	return nil
}

func (p PaymentLinkParams) toSquareRequest(locationID, idempotencyKey string) *sqcheckout.CreatePaymentLinkRequest {
	name := strings.TrimSpace(p.Description)
	if name == "" {
		name = "Order " + strings.TrimSpace(p.OrderNumber)
	}
	req := &sqcheckout.CreatePaymentLinkRequest{
		IdempotencyKey: ptrString(idempotencyKey),
		Description:    ptrString(name),
		QuickPay: &sq.QuickPay{
			Name:       name,
			PriceMoney: moneyPtr(p.AmountCents, p.Currency),
			LocationID: locationID,
		},
		CheckoutOptions: &sq.CheckoutOptions{
			RedirectURL: ptrString(strings.TrimSpace(p.ReturnURL)),
		},
		PaymentNote: ptrString(p.paymentNote()),
	}

	email := strings.TrimSpace(p.BuyerEmail)
	phone := normalizePhone(p.BuyerPhone)
	if email != "" || phone != "" {
		req.PrePopulatedData = &sq.PrePopulatedData{
			BuyerEmail:       ptrString(email),
			BuyerPhoneNumber: ptrString(phone),
		}
	}
	return req
}

// paymentNote ties the Square payment back to the commerce order.
func (p PaymentLinkParams) paymentNote() string {
	var b strings.Builder
	fmt.Fprintf(&b, "order %s (%s)", strings.TrimSpace(p.OrderNumber), strings.TrimSpace(p.OrderID))
	for _, item := range p.LineItems {
		fmt.Fprintf(&b, "; %dx %s", item.Quantity, strings.TrimSpace(item.Name))
	}
	return truncateRunes(b.String(), maxPaymentNoteLen)
}

// truncateRunes cuts s to at most limit characters without splitting one.
func truncateRunes(s string, limit int) string {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// normalizePhone keeps a leading + and the digits; Square rejects other punctuation.
func normalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
