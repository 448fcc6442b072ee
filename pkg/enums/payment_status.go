package enums

import "fmt"

// PaymentStatus is the payment state written on the backend order header.
// The storefront only sets the initial value; the gateway and the failure
// report move it forward.
type PaymentStatus string

const (
	PaymentStatusUnpaid           PaymentStatus = "unpaid"
	PaymentStatusPending          PaymentStatus = "pending"
	PaymentStatusInitiated        PaymentStatus = "initiated"
	PaymentStatusInitiationFailed PaymentStatus = "initiation_failed"
	PaymentStatusPaid             PaymentStatus = "paid"
)

// paymentTransitions lists the statuses each status may move to.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusUnpaid:           {PaymentStatusPaid},
	PaymentStatusPending:          {PaymentStatusInitiated, PaymentStatusInitiationFailed},
	PaymentStatusInitiated:        {PaymentStatusPaid, PaymentStatusInitiationFailed},
	PaymentStatusInitiationFailed: {PaymentStatusPending},
	PaymentStatusPaid:             nil,
}

// InitialPaymentStatus is the status a new order header carries for kind.
func InitialPaymentStatus(kind PaymentMethodKind) PaymentStatus {
	if kind.RequiresGateway() {
		return PaymentStatusPending
	}
	return PaymentStatusUnpaid
}

func (p PaymentStatus) String() string {
	return string(p)
}

func (p PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[p]
	return ok
}

// CanTransitionTo reports whether next is a legal successor of p.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, candidate := range paymentTransitions[p] {
		if candidate == next {
			return true
		}
	}
	return false
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	status := PaymentStatus(value)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid payment status %q", value)
	}
	return status, nil
}
