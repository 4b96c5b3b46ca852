package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeMC777/ordenes-pipeline/internal/messaging"
	"github.com/MikeMC777/ordenes-pipeline/internal/order"
)

// Transport is the broker surface the producer publishes through.
type Transport interface {
	Declare(ctx context.Context, t messaging.Topology) error
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
	Close() error
}

// Producer publishes order and payment events. It declares the topology before the
// first publish and again after a failed declaration.
type Producer struct {
	transport Transport
	now       func() time.Time
	log       *slog.Logger

	mu       sync.Mutex
	declared bool
}

func NewProducer(transport Transport, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	return &Producer{transport: transport, now: time.Now, log: log.With("component", "event-producer")}
}

func (p *Producer) ensureTopology(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.declared {
		return nil
	}
	if err := p.transport.Declare(ctx, Topology); err != nil {
		return err
	}
	p.declared = true
	return nil
}

func (p *Producer) publish(ctx context.Context, key string, e Event) error {
	body, err := Encode(e)
	if err != nil {
		return err
	}
	if err := p.ensureTopology(ctx); err != nil {
		return fmt.Errorf("events.publish %s: %w", key, err)
	}
	if err := p.transport.Publish(ctx, Exchange, key, body); err != nil {
		return fmt.Errorf("events.publish %s: %w", key, err)
	}
	p.log.DebugContext(ctx, "event published", "routing_key", key, "event_type", e.EventType(), "order_id", e.OrderRef())
	return nil
}

func (p *Producer) PublishOrderCreated(ctx context.Context, o *order.Order) error {
	return p.publish(ctx, KeyOrderCreated, OrderCreated{
		OrderID:     o.ID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount.InexactFloat64(),
		Timestamp:   NewTimestamp(p.now().UTC()),
	})
}

func (p *Producer) PublishPaymentProcessed(ctx context.Context, o *order.Order, method order.PaymentMethod) error {
	return p.publish(ctx, KeyPayment, PaymentProcessed{
		OrderID:       o.ID,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: string(method),
		Timestamp:     NewTimestamp(p.now().UTC()),
	})
}

func (p *Producer) Close() error {
	return p.transport.Close()
}
