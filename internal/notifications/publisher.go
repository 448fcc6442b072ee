package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/google/uuid"
)

const (
	EventOrderCreated     = "order.created"
	defaultPublishTimeout = 5 * time.Second
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// OrderCreatedEvent is the payload downstream notification senders consume.
type OrderCreatedEvent struct {
	EventID          string            `json:"event_id"`
	EventType        string            `json:"event_type"`
	OccurredAt       time.Time         `json:"occurred_at"`
	OrderID          string            `json:"order_id"`
	OrderNumber      string            `json:"order_number"`
	Customer         orders.Customer   `json:"customer"`
	DeliveryMethodID string            `json:"delivery_method_id"`
	PaymentMethodID  string            `json:"payment_method_id"`
	TotalCents       int64             `json:"total_cents"`
	Lines            orders.LineCounts `json:"lines"`
}

// OrderEvents publishes order notifications to Pub/Sub without holding up
// the request that produced them.
type OrderEvents struct {
	pub     publisher
	timeout time.Duration
	logg    *logger.Logger
	now     func() time.Time
	done    func()
}

func NewOrderEvents(p *gcppubsub.Publisher, timeout time.Duration, logg *logger.Logger) (*OrderEvents, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return newOrderEvents(&gcpPublisher{Publisher: p}, timeout, logg), nil
}

func newOrderEvents(pub publisher, timeout time.Duration, logg *logger.Logger) *OrderEvents {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &OrderEvents{pub: pub, timeout: timeout, logg: logg, now: time.Now}
}

// PublishOrderCreated encodes the event and hands delivery to a background
// goroutine bounded by the publish timeout. Only encoding errors are returned.
func (e *OrderEvents) PublishOrderCreated(ctx context.Context, header orders.OrderHeader, result *orders.Result) error {
	if result == nil {
		return errors.New("order result required")
	}
	event := OrderCreatedEvent{
		EventID:          uuid.NewString(),
		EventType:        EventOrderCreated,
		OccurredAt:       e.now().UTC(),
		OrderID:          result.OrderID,
		OrderNumber:      header.OrderNumber,
		Customer:         header.Customer,
		DeliveryMethodID: header.DeliveryMethodID,
		PaymentMethodID:  header.PaymentMethodID,
		TotalCents:       header.Totals.TotalCents,
		Lines:            result.Counts(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", EventOrderCreated, err)
	}
	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":     event.EventID,
			"event_type":   event.EventType,
			"order_id":     event.OrderID,
			"order_number": event.OrderNumber,
		},
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		if e.done != nil {
			defer e.done()
		}
		if err := e.deliver(detached, msg); err != nil {
			e.logg.Warn(e.logg.WithFields(detached, map[string]any{
				"event_id": event.EventID,
				"error":    err.Error(),
			}), "notification.publish.failed")
		}
	}()
	return nil
}

func (e *OrderEvents) deliver(ctx context.Context, msg *gcppubsub.Message) error {
	publishCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	result := e.pub.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return err
	}
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
