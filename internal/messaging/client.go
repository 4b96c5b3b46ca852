// Package messaging is a small durable-messaging client over AMQP 0-9-1.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MikeMC777/ordenes-pipeline/internal/metrics"
)

const (
	exchangeKind = "topic"
	contentType  = "application/json"
	prefetch     = 1
)

// ErrDeliveriesClosed is returned by Consume when the broker closes the delivery channel.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Handler processes one message body. A nil return acknowledges the message; an error
// rejects it without requeue.
type Handler func(ctx context.Context, body []byte) error

// Client connects lazily and reconnects when the connection or channel was closed.
type Client struct {
	url string
	log *slog.Logger

	mu    sync.Mutex
	conn  *amqp.Connection
	pubCh *amqp.Channel
}

func NewClient(url string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{url: url, log: log.With("component", "amqp")}
}

// connection must be called with mu held.
func (c *Client) connection() (*amqp.Connection, error) {
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn, nil
	}
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("amqp.Dial: %w", err)
	}
	c.conn = conn
	c.pubCh = nil
	c.log.Info("connected to broker")
	return conn, nil
}

// channel returns the shared publishing channel. It must be called with mu held.
func (c *Client) channel() (*amqp.Channel, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	if c.pubCh != nil && !c.pubCh.IsClosed() {
		return c.pubCh, nil
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("conn.Channel: %w", err)
	}
	c.pubCh = ch
	return ch, nil
}

// Declare creates the exchange, queues and bindings. Re-declaring is idempotent.
func (c *Client) Declare(ctx context.Context, t Topology) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := c.channel()
	if err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(t.Exchange, exchangeKind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("ch.ExchangeDeclare %s: %w", t.Exchange, err)
	}
	for _, b := range t.Bindings {
		if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("ch.QueueDeclare %s: %w", b.Queue, err)
		}
		if err := ch.QueueBind(b.Queue, b.RoutingKey, t.Exchange, false, nil); err != nil {
			return fmt.Errorf("ch.QueueBind %s: %w", b.Queue, err)
		}
	}

	c.log.InfoContext(ctx, "topology declared", "exchange", t.Exchange, "queues", len(t.Bindings))
	return nil
}

// Publish sends a persistent JSON message. A closed channel is reopened once.
func (c *Client) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var ch *amqp.Channel
		ch, err = c.channel()
		if err != nil {
			break
		}
		err = ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
		if !errors.Is(err, amqp.ErrClosed) {
			break
		}
		c.pubCh = nil
	}

	if err != nil {
		metrics.EventsPublished.WithLabelValues(routingKey, "error").Inc()
		return fmt.Errorf("messaging.Publish %s: %w", routingKey, err)
	}
	metrics.EventsPublished.WithLabelValues(routingKey, "ok").Inc()
	return nil
}

// Consume reads queue on a dedicated channel with prefetch 1 until ctx is cancelled or
// the broker closes the channel. The handler for an in-flight message always runs to
// completion before Consume returns.
func (c *Client) Consume(ctx context.Context, queue string, handler Handler) error {
	c.mu.Lock()
	conn, err := c.connection()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("conn.Channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("ch.Qos: %w", err)
	}

	tag := queue + "-" + uuid.NewString()[:8]
	deliveries, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("ch.Consume %s: %w", queue, err)
	}

	c.log.InfoContext(ctx, "consuming", "queue", queue, "consumer_tag", tag)
	err = serve(ctx, queue, deliveries, handler, c.log)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		_ = ch.Cancel(tag, false)
	}
	return err
}

// Run keeps Consume alive across broker disconnects until ctx is cancelled.
func (c *Client) Run(ctx context.Context, queue string, handler Handler) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0

	op := func() error {
		err := c.Consume(ctx, queue, handler)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = ErrDeliveriesClosed
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.log.WarnContext(ctx, "consumer interrupted, reconnecting", "queue", queue, "error", err, "retry_in", wait)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.pubCh != nil {
		if err := c.pubCh.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("channel.Close: %w", err))
		}
		c.pubCh = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("conn.Close: %w", err))
		}
		c.conn = nil
	}
	return errors.Join(errs...)
}

// serve dispatches deliveries one at a time. It returns ctx.Err() on cancellation and
// ErrDeliveriesClosed when the channel is closed underneath it.
func serve(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, handler Handler, log *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			handle(context.WithoutCancel(ctx), queue, d, handler, log)
		}
	}
}

func handle(ctx context.Context, queue string, d amqp.Delivery, handler Handler, log *slog.Logger) {
	err := invoke(ctx, d.Body, handler)
	if err != nil {
		log.ErrorContext(ctx, "message rejected", "queue", queue, "message_id", d.MessageId, "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.ErrorContext(ctx, "nack failed", "queue", queue, "error", nackErr)
		}
		metrics.MessagesConsumed.WithLabelValues(queue, "nack").Inc()
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		log.ErrorContext(ctx, "ack failed", "queue", queue, "error", ackErr)
	}
	metrics.MessagesConsumed.WithLabelValues(queue, "ack").Inc()
}

func invoke(ctx context.Context, body []byte, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, body)
}
