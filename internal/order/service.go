package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-pipeline/internal/product"
)

const orderNumberAttempts = 3

// EventPublisher announces committed orders. Failures never undo the order.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, o *Order) error
}

type Service struct {
	store          Store
	publisher      EventPublisher
	publishTimeout time.Duration
	newNumber      func() string
	log            *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

func WithPublishTimeout(d time.Duration) Option { return func(s *Service) { s.publishTimeout = d } }

func WithOrderNumberFunc(fn func() string) Option { return func(s *Service) { s.newNumber = fn } }

func NewService(store Store, publisher EventPublisher, opts ...Option) *Service {
	s := &Service{
		store:          store,
		publisher:      publisher,
		publishTimeout: 5 * time.Second,
		newNumber:      NewOrderNumber,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "order-service")
	return s
}

// NewOrderNumber returns "ORD-" followed by eight upper-case hex digits.
func NewOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}

func validateCreate(req CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "order must contain at least one item"}
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return &ValidationError{Field: "items", Reason: fmt.Sprintf("quantity for product %d must be positive", it.ProductID)}
		}
	}
	if req.PaymentMethod != nil {
		if _, err := ToPaymentMethod(string(*req.PaymentMethod)); err != nil {
			return err
		}
	}
	return nil
}

// CreateOrder persists the order and its items in one transaction, pricing every line
// at the product's current price. The order.created event is published after commit.
func (s *Service) CreateOrder(ctx context.Context, userID int64, req CreateOrderRequest) (*Order, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	var (
		o   *Order
		err error
	)
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		o, err = s.create(ctx, userID, req)
		if !errors.Is(err, ErrDuplicateOrderNumber) {
			break
		}
		s.log.WarnContext(ctx, "order number collision, retrying", "attempt", attempt)
	}
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "order created",
		"order_id", o.ID, "order_number", o.OrderNumber, "user_id", o.UserID, "total_amount", o.TotalAmount.StringFixed(2))

	s.publishCreated(ctx, o)
	return o, nil
}

func (s *Service) create(ctx context.Context, userID int64, req CreateOrderRequest) (*Order, error) {
	o := &Order{
		OrderNumber:   s.newNumber(),
		UserID:        userID,
		PaymentMethod: req.PaymentMethod,
	}

	err := s.store.InTx(ctx, func(tx TxStore) error {
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}

		products := tx.Products()
		total := decimal.Zero
		for _, line := range req.Items {
			p, err := products.GetByID(ctx, line.ProductID)
			if errors.Is(err, product.ErrNotFound) {
				return &ValidationError{
					Field:  "items",
					Reason: fmt.Sprintf("product %d not found", line.ProductID),
					Err:    err,
				}
			}
			if err != nil {
				return err
			}

			it := Item{
				OrderID:   o.ID,
				ProductID: p.ID,
				Quantity:  line.Quantity,
				Price:     p.Price,
			}
			if err := tx.InsertItem(ctx, &it); err != nil {
				return err
			}
			total = total.Add(it.Subtotal())
			o.Items = append(o.Items, it)
		}

		if err := tx.SetTotal(ctx, o.ID, total); err != nil {
			return err
		}
		o.TotalAmount = total
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("order.CreateOrder: %w", err)
	}
	return o, nil
}

func (s *Service) publishCreated(ctx context.Context, o *Order) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.PublishOrderCreated(pctx, o); err != nil {
		s.log.ErrorContext(ctx, "publish order created failed", "order_id", o.ID, "error", err)
	}
}

// GetOrderByID returns the order only when it belongs to userID.
func (s *Service) GetOrderByID(ctx context.Context, orderID, userID int64) (*Order, error) {
	o, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("order.GetOrderByID: %w", ErrNotFound)
	}
	return o, nil
}

func (s *Service) GetUserOrders(ctx context.Context, userID int64, skip, limit int) ([]Order, error) {
	return s.store.ListByUser(ctx, userID, skip, limit)
}

// UpdateOrderStatus overwrites the status without checking the transition.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*Order, error) {
	st, err := ToStatus(status)
	if err != nil {
		return nil, err
	}

	o, err := s.store.UpdateStatus(ctx, orderID, st)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "order status updated", "order_id", o.ID, "status", o.Status)
	return o, nil
}
