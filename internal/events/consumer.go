package events

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/MikeMC777/ordenes-pipeline/internal/messaging"
	"github.com/MikeMC777/ordenes-pipeline/internal/order"
	"github.com/MikeMC777/ordenes-pipeline/internal/ordertasks"
	"github.com/MikeMC777/ordenes-pipeline/internal/tasks"
)

// Source is the broker surface the consumer reads from.
type Source interface {
	Declare(ctx context.Context, t messaging.Topology) error
	Run(ctx context.Context, queue string, handler messaging.Handler) error
}

// Consumer turns received events into background tasks.
type Consumer struct {
	source    Source
	tasks     tasks.Enqueuer
	recipient string
	log       *slog.Logger
}

// NewConsumer enqueues onto q. Confirmation emails go to recipient since events carry
// no address.
func NewConsumer(source Source, q tasks.Enqueuer, recipient string, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{source: source, tasks: q, recipient: recipient, log: log.With("component", "event-consumer")}
}

// Queues lists the queues this consumer has handlers for.
func Queues() []string {
	return []string{QueueOrderCreated, QueuePaymentProcessed}
}

// Setup declares the topology. Declaring it again is harmless.
func (c *Consumer) Setup(ctx context.Context) error {
	if err := c.source.Declare(ctx, Topology); err != nil {
		return fmt.Errorf("events.Setup: %w", err)
	}
	c.log.InfoContext(ctx, "topology declared", "exchange", Exchange)
	return nil
}

func (c *Consumer) handler(queue string) (messaging.Handler, error) {
	switch queue {
	case QueueOrderCreated:
		return c.HandleOrderCreated, nil
	case QueuePaymentProcessed:
		return c.HandlePaymentProcessed, nil
	default:
		return nil, fmt.Errorf("events: no handler for queue %q", queue)
	}
}

// Run declares the topology and consumes each queue on its own goroutine until ctx is
// cancelled or one of them fails.
func (c *Consumer) Run(ctx context.Context, queues ...string) error {
	if len(queues) == 0 {
		queues = Queues()
	}
	handlers := make(map[string]messaging.Handler, len(queues))
	for _, q := range queues {
		h, err := c.handler(q)
		if err != nil {
			return err
		}
		handlers[q] = h
	}

	if err := c.Setup(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for queue, h := range handlers {
		g.Go(func() error {
			c.log.InfoContext(gctx, "consuming", "queue", queue)
			return c.source.Run(gctx, queue, h)
		})
	}
	return g.Wait()
}

func (c *Consumer) HandleOrderCreated(ctx context.Context, body []byte) error {
	ev, err := Decode(body)
	if err != nil {
		return err
	}
	created, ok := ev.(OrderCreated)
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrUnknownEvent, ev.EventType(), QueueOrderCreated)
	}

	jobID, err := ordertasks.SendOrderConfirmationEmail.Enqueue(ctx, c.tasks, ordertasks.SendConfirmationArgs{
		OrderID:   created.OrderID,
		Recipient: c.recipient,
	})
	if err != nil {
		return fmt.Errorf("events.HandleOrderCreated: %w", err)
	}
	c.log.InfoContext(ctx, "confirmation email queued", "order_id", created.OrderID, "job_id", jobID)
	return nil
}

func (c *Consumer) HandlePaymentProcessed(ctx context.Context, body []byte) error {
	ev, err := Decode(body)
	if err != nil {
		return err
	}
	processed, ok := ev.(PaymentProcessed)
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrUnknownEvent, ev.EventType(), QueuePaymentProcessed)
	}

	if processed.PaymentStatus != order.PaymentStatusCompleted {
		c.log.InfoContext(ctx, "payment not completed, verification skipped",
			"order_id", processed.OrderID, "payment_status", processed.PaymentStatus)
		return nil
	}

	jobID, err := ordertasks.VerifyPaymentStatus.Enqueue(ctx, c.tasks, ordertasks.VerifyPaymentArgs{OrderID: processed.OrderID})
	if err != nil {
		return fmt.Errorf("events.HandlePaymentProcessed: %w", err)
	}
	c.log.InfoContext(ctx, "payment verification queued", "order_id", processed.OrderID, "job_id", jobID)
	return nil
}
