// Package ordertasks defines the background jobs triggered by order events.
package ordertasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeMC777/ordenes-pipeline/internal/order"
	"github.com/MikeMC777/ordenes-pipeline/internal/tasks"
)

type VerifyPaymentArgs struct {
	OrderID int64 `json:"order_id"`
}

type SendConfirmationArgs struct {
	OrderID   int64  `json:"order_id"`
	Recipient string `json:"recipient"`
}

// Report is the stored outcome of both tasks.
type Report struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

var (
	VerifyPaymentStatus        = tasks.Define[VerifyPaymentArgs, Report]("verify_payment_status")
	SendOrderConfirmationEmail = tasks.Define[SendConfirmationArgs, Report]("send_order_confirmation_email")
)

// Orders is the order store surface the tasks touch.
type Orders interface {
	GetByID(ctx context.Context, id int64) (*order.Order, error)
	MarkPaid(ctx context.Context, id int64) (*order.Order, bool, error)
}

type Delays struct {
	Verify time.Duration
	Email  time.Duration
}

type Handlers struct {
	orders Orders
	delays Delays
	log    *slog.Logger
}

func NewHandlers(orders Orders, delays Delays, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{orders: orders, delays: delays, log: log.With("component", "order-tasks")}
}

// Register binds both tasks to r.
func (h *Handlers) Register(r *tasks.Registry) {
	VerifyPaymentStatus.Handle(r, h.VerifyPayment)
	SendOrderConfirmationEmail.Handle(r, h.SendConfirmation)
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// VerifyPayment reconciles the order status with its payment outcome. Running it again
// on a paid order returns the same report without writing.
func (h *Handlers) VerifyPayment(ctx context.Context, args VerifyPaymentArgs) (Report, error) {
	sleep(ctx, h.delays.Verify)

	o, err := h.orders.GetByID(ctx, args.OrderID)
	if errors.Is(err, order.ErrNotFound) {
		return Report{Success: false, Message: "Order does not exist"}, nil
	}
	if err != nil {
		return Report{}, fmt.Errorf("ordertasks.VerifyPayment: %w", err)
	}

	if o.Status == order.StatusPaid {
		return Report{Success: true, Status: string(order.StatusPaid), Message: "Payment confirmed"}, nil
	}
	if o.PaymentStatus != order.PaymentStatusCompleted {
		return Report{Success: false, Status: o.PaymentStatus, Message: "Payment not yet completed"}, nil
	}

	updated, changed, err := h.orders.MarkPaid(ctx, o.ID)
	if err != nil {
		return Report{}, fmt.Errorf("ordertasks.VerifyPayment: %w", err)
	}
	if !changed {
		// another writer got there first
		if updated.Status == order.StatusPaid {
			return Report{Success: true, Status: string(order.StatusPaid), Message: "Payment confirmed"}, nil
		}
		return Report{Success: false, Status: updated.PaymentStatus, Message: "Payment not yet completed"}, nil
	}

	h.log.InfoContext(ctx, "order marked paid by verification", "order_id", o.ID)
	return Report{Success: true, Status: string(order.StatusPaid), Message: "Payment confirmed and updated"}, nil
}

// SendConfirmation simulates sending the confirmation email. Each run sends again.
func (h *Handlers) SendConfirmation(ctx context.Context, args SendConfirmationArgs) (Report, error) {
	sleep(ctx, h.delays.Email)

	h.log.InfoContext(ctx, "confirmation email sent", "order_id", args.OrderID, "recipient", args.Recipient)
	return Report{Success: true, Message: "Order confirmation email sent to " + args.Recipient}, nil
}
