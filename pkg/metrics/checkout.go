package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records how order persistence and payment initiation behave
// against the external backends.
type CheckoutMetrics struct {
	lineOutcomes  *prometheus.CounterVec
	linkAttempts  *prometheus.CounterVec
	verifications *prometheus.CounterVec
	orderDuration *prometheus.HistogramVec
	orders        *prometheus.CounterVec
	payments      *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
// A nil registerer yields a recorder that drops everything.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	lineOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_line_items_total",
		Help: "Order line items by creation outcome.",
	}, []string{"outcome"})
	linkAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_link_attempts_total",
		Help: "Attempts to link line items to their order, by field, mode and result.",
	}, []string{"field", "mode", "result"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_link_verifications_total",
		Help: "Linkage verification reads by result.",
	}, []string{"result"})
	orderDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_order_duration_seconds",
		Help:    "Time spent persisting an order and its line items.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_total",
		Help: "Order persistence attempts by result.",
	}, []string{"result"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_payment_initiations_total",
		Help: "Hosted payment initiations by result.",
	}, []string{"result"})
	reg.MustRegister(lineOutcomes, linkAttempts, verifications, orderDuration, orders, payments)
	return &CheckoutMetrics{
		lineOutcomes:  lineOutcomes,
		linkAttempts:  linkAttempts,
		verifications: verifications,
		orderDuration: orderDuration,
		orders:        orders,
		payments:      payments,
	}
}

func (m *CheckoutMetrics) IncLineOutcome(outcome string) {
	if m == nil || m.lineOutcomes == nil {
		return
	}
	m.lineOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *CheckoutMetrics) IncLinkAttempt(field, mode string, ok bool) {
	if m == nil || m.linkAttempts == nil {
		return
	}
	m.linkAttempts.WithLabelValues(normalizeLabel(field), normalizeLabel(mode), resultLabel(ok)).Inc()
}

func (m *CheckoutMetrics) IncVerification(verified bool) {
	if m == nil || m.verifications == nil {
		return
	}
	result := "unverified"
	if verified {
		result = "verified"
	}
	m.verifications.WithLabelValues(result).Inc()
}

// ObserveOrder records one order persistence attempt.
func (m *CheckoutMetrics) ObserveOrder(ok bool, duration time.Duration) {
	if m == nil || m.orders == nil {
		return
	}
	result := resultLabel(ok)
	m.orders.WithLabelValues(result).Inc()
	m.orderDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func (m *CheckoutMetrics) IncPayment(ok bool) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(resultLabel(ok)).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
