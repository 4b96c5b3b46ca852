// Package events carries order-domain events between processes over the broker.
package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MikeMC777/ordenes-pipeline/internal/messaging"
)

const (
	TypeOrderCreated     = "order_created"
	TypePaymentProcessed = "payment_processed"
	TypeOrderShipped     = "order_shipped"
)

const (
	Exchange = "order_events"

	QueueOrderCreated     = "order_created"
	QueuePaymentProcessed = "payment_processed"
	QueueOrderShipped     = "order_shipped"

	KeyOrderCreated = "order.created"
	KeyPayment      = "order.payment"
	KeyOrderShipped = "order.shipped"
)

// Topology is declared by both sides. Shipment is bound but never published here.
var Topology = messaging.Topology{
	Exchange: Exchange,
	Bindings: []messaging.Binding{
		{Queue: QueueOrderCreated, RoutingKey: KeyOrderCreated},
		{Queue: QueuePaymentProcessed, RoutingKey: KeyPayment},
		{Queue: QueueOrderShipped, RoutingKey: KeyOrderShipped},
	},
}

var (
	ErrUnknownEvent   = errors.New("unknown event type")
	ErrMalformedEvent = errors.New("malformed event")
)

// Event is one of OrderCreated or PaymentProcessed.
type Event interface {
	EventType() string
	OrderRef() int64
}

type OrderCreated struct {
	OrderID     int64     `json:"order_id"`
	UserID      int64     `json:"user_id"`
	TotalAmount float64   `json:"total_amount"`
	Timestamp   Timestamp `json:"timestamp"`
}

func (OrderCreated) EventType() string { return TypeOrderCreated }
func (e OrderCreated) OrderRef() int64 { return e.OrderID }

type PaymentProcessed struct {
	OrderID       int64     `json:"order_id"`
	PaymentStatus string    `json:"payment_status"`
	PaymentMethod string    `json:"payment_method"`
	Timestamp     Timestamp `json:"timestamp"`
}

func (PaymentProcessed) EventType() string { return TypePaymentProcessed }
func (e PaymentProcessed) OrderRef() int64 { return e.OrderID }

type header struct {
	EventType string `json:"event_type"`
}

// Encode writes the envelope with its event_type discriminator first.
func Encode(e Event) ([]byte, error) {
	var payload any
	switch ev := e.(type) {
	case OrderCreated:
		payload = struct {
			header
			OrderCreated
		}{header{TypeOrderCreated}, ev}
	case PaymentProcessed:
		payload = struct {
			header
			PaymentProcessed
		}{header{TypePaymentProcessed}, ev}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, e)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("events.Encode: %w", err)
	}
	return b, nil
}

// Decode reads an envelope into its concrete event. Unknown discriminators are rejected.
func Decode(body []byte) (Event, error) {
	var h header
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var (
		ev  Event
		err error
	)
	switch h.EventType {
	case TypeOrderCreated:
		var e OrderCreated
		err = json.Unmarshal(body, &e)
		ev = e
	case TypePaymentProcessed:
		var e PaymentProcessed
		err = json.Unmarshal(body, &e)
		ev = e
	case "":
		return nil, fmt.Errorf("%w: missing event_type", ErrMalformedEvent)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, h.EventType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.OrderRef() <= 0 {
		return nil, fmt.Errorf("%w: missing order_id", ErrMalformedEvent)
	}
	return ev, nil
}
