// Package payment settles orders against a simulated gateway.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-pipeline/internal/order"
)

// Orders is the part of the order store payment settlement needs.
type Orders interface {
	GetByID(ctx context.Context, id int64) (*order.Order, error)
	SettlePayment(ctx context.Context, id int64, paymentStatus string, paid bool) (*order.Order, error)
}

// EventPublisher announces settlement outcomes, approved or declined.
type EventPublisher interface {
	PublishPaymentProcessed(ctx context.Context, o *order.Order, method order.PaymentMethod) error
}

// Result is returned for both approved and declined charges.
type Result struct {
	Success       bool                `json:"success"`
	Message       string              `json:"message"`
	TransactionID string              `json:"transaction_id,omitempty"`
	Amount        *decimal.Decimal    `json:"amount,omitempty"`
	PaymentMethod order.PaymentMethod `json:"payment_method,omitempty"`
	Timestamp     *time.Time          `json:"timestamp,omitempty"`
	ErrorCode     string              `json:"error_code,omitempty"`
}

type Verification struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

type Service struct {
	orders         Orders
	gateway        Gateway
	publisher      EventPublisher
	publishTimeout time.Duration
	now            func() time.Time
	log            *slog.Logger
}

func NewService(orders Orders, gateway Gateway, publisher EventPublisher, publishTimeout time.Duration, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if publishTimeout <= 0 {
		publishTimeout = 5 * time.Second
	}
	return &Service{
		orders:         orders,
		gateway:        gateway,
		publisher:      publisher,
		publishTimeout: publishTimeout,
		now:            time.Now,
		log:            log.With("component", "payment-service"),
	}
}

// ProcessPayment charges a pending order. A declined charge is a normal Result with
// Success=false; errors are reserved for missing orders, non-pending orders and
// infrastructure faults.
func (s *Service) ProcessPayment(ctx context.Context, orderID int64, paymentMethod string) (*Result, error) {
	method, err := order.ToPaymentMethod(paymentMethod)
	if err != nil {
		return nil, err
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("payment.ProcessPayment: %w", err)
	}
	if o.Status != order.StatusPending {
		return nil, fmt.Errorf("payment.ProcessPayment: %w", &order.ConflictError{OrderID: o.ID, Status: o.Status})
	}

	auth, err := s.gateway.Authorize(ctx, o.ID, o.TotalAmount, method)
	if err != nil {
		return nil, fmt.Errorf("gateway.Authorize: %w", err)
	}

	paymentStatus := order.PaymentStatusFailed
	if auth.Approved {
		paymentStatus = order.PaymentStatusCompleted
	}

	settled, err := s.orders.SettlePayment(ctx, o.ID, paymentStatus, auth.Approved)
	if err != nil {
		return nil, fmt.Errorf("payment.ProcessPayment: %w", err)
	}

	s.log.InfoContext(ctx, "payment processed",
		"order_id", settled.ID, "payment_status", settled.PaymentStatus, "status", settled.Status, "payment_method", method)

	s.publishProcessed(ctx, settled, method)

	if !auth.Approved {
		return &Result{
			Success:   false,
			Message:   "Payment failed, please try again later",
			ErrorCode: auth.ErrorCode,
		}, nil
	}

	ts := s.now().UTC()
	amount := settled.TotalAmount
	return &Result{
		Success:       true,
		Message:       "Payment successful",
		TransactionID: auth.TransactionID,
		Amount:        &amount,
		PaymentMethod: method,
		Timestamp:     &ts,
	}, nil
}

func (s *Service) publishProcessed(ctx context.Context, o *order.Order, method order.PaymentMethod) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.PublishPaymentProcessed(pctx, o, method); err != nil {
		s.log.ErrorContext(ctx, "publish payment processed failed", "order_id", o.ID, "error", err)
	}
}

// VerifyPaymentStatus reports the recorded payment outcome. Verified means the order
// exists and was checked, whatever its outcome. It never writes.
func (s *Service) VerifyPaymentStatus(ctx context.Context, orderID int64) (*Verification, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("payment.VerifyPaymentStatus: %w", err)
	}

	switch o.PaymentStatus {
	case order.PaymentStatusCompleted:
		return &Verification{Verified: true, Status: o.PaymentStatus, Message: "Payment completed"}, nil
	case order.PaymentStatusPending:
		return &Verification{Verified: true, Status: o.PaymentStatus, Message: "Payment processing"}, nil
	default:
		return &Verification{Verified: true, Status: order.PaymentStatusFailed, Message: "Payment failed"}, nil
	}
}
