package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

// remember to add new statuses to the validStatuses map
const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCanceled  Status = "canceled"
)

var validStatuses = map[Status]struct{}{
	StatusPending:   {},
	StatusPaid:      {},
	StatusShipped:   {},
	StatusDelivered: {},
	StatusCanceled:  {},
}

func ToStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validStatuses[status]; ok {
		return status, nil
	}
	return "", &ValidationError{Field: "status", Reason: "invalid order status " + s}
}

type PaymentMethod string

const (
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentPayPal       PaymentMethod = "paypal"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

var validPaymentMethods = map[PaymentMethod]struct{}{
	PaymentCreditCard:   {},
	PaymentPayPal:       {},
	PaymentBankTransfer: {},
}

func ToPaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if _, ok := validPaymentMethods[m]; ok {
		return m, nil
	}
	return "", &ValidationError{Field: "payment_method", Reason: "invalid payment method " + s}
}

// Payment status is stored as free-form text; these are the values the pipeline writes.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

type Order struct {
	ID            int64           `json:"id"`
	OrderNumber   string          `json:"order_number"`
	UserID        int64           `json:"user_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        Status          `json:"status"`
	PaymentMethod *PaymentMethod  `json:"payment_method,omitempty"`
	PaymentStatus string          `json:"payment_status"`
	Items         []Item          `json:"items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Item carries the product price captured when the order was placed.
type Item struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
