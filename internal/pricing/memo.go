package pricing

import (
	"strconv"
	"strings"
	"sync"
)

// Memo caches the last breakdown and recomputes only when the cart, the
// delivery method, the promo or the threshold change.
type Memo struct {
	mu     sync.Mutex
	key    string
	valid  bool
	result Breakdown
}

func (m *Memo) Compute(lines []CartLine, deliveryMethodID string, promo *AppliedPromo, catalog DeliveryCatalog, freeDeliveryThresholdCents int64) Breakdown {
	key := memoKey(lines, deliveryMethodID, promo, catalog[deliveryMethodID], freeDeliveryThresholdCents)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid && m.key == key {
		return m.result
	}
	m.result = ComputeTotals(lines, deliveryMethodID, promo, catalog, freeDeliveryThresholdCents)
	m.key = key
	m.valid = true
	return m.result
}

// Invalidate drops the cached breakdown.
func (m *Memo) Invalidate() {
	m.mu.Lock()
	m.valid = false
	m.mu.Unlock()
}

func memoKey(lines []CartLine, deliveryMethodID string, promo *AppliedPromo, basePrice, threshold int64) string {
	var b strings.Builder
	b.WriteString(deliveryMethodID)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(basePrice, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(threshold, 10))
	b.WriteByte('|')
	if promo != nil {
		b.WriteString(string(promo.Type))
		b.WriteByte(':')
		b.WriteString(promo.Value.String())
	}
	for _, line := range lines {
		b.WriteByte('|')
		b.WriteString(line.ProductID)
		b.WriteByte(':')
		b.WriteString(line.Size)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(line.Quantity))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(line.UnitPriceCents, 10))
	}
	return b.String()
}
