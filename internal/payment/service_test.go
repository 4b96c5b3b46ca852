package payment_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/ordenes-pipeline/internal/order"
	"github.com/MikeMC777/ordenes-pipeline/internal/order/ordertest"
	"github.com/MikeMC777/ordenes-pipeline/internal/payment"
)

type published struct {
	order  order.Order
	method order.PaymentMethod
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (f *fakePublisher) PublishPaymentProcessed(_ context.Context, o *order.Order, method order.PaymentMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{order: *o, method: method})
	return f.err
}

func pendingOrder(store *ordertest.MemStore) order.Order {
	return store.Put(order.Order{
		UserID:        1,
		TotalAmount:   decimal.RequireFromString("25.00"),
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentStatusPending,
	})
}

func TestProcessPayment_Outcomes(t *testing.T) {
	tests := []struct {
		name              string
		gateway           payment.Gateway
		wantSuccess       bool
		wantStatus        order.Status
		wantPaymentStatus string
	}{
		{
			name:              "approved: paid and completed",
			gateway:           payment.FixedGateway{Approve: true},
			wantSuccess:       true,
			wantStatus:        order.StatusPaid,
			wantPaymentStatus: order.PaymentStatusCompleted,
		},
		{
			name:              "declined: still pending, payment failed",
			gateway:           payment.FixedGateway{Approve: false},
			wantSuccess:       false,
			wantStatus:        order.StatusPending,
			wantPaymentStatus: order.PaymentStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := ordertest.NewMemStore()
			o := pendingOrder(store)
			pub := &fakePublisher{}
			svc := payment.NewService(store, tt.gateway, pub, 0, nil)

			res, err := svc.ProcessPayment(t.Context(), o.ID, "credit_card")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, res.Success)

			stored, err := store.GetByID(t.Context(), o.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
			assert.Equal(t, tt.wantPaymentStatus, stored.PaymentStatus)

			require.Len(t, pub.events, 1)
			assert.Equal(t, tt.wantPaymentStatus, pub.events[0].order.PaymentStatus)
			assert.Equal(t, order.PaymentCreditCard, pub.events[0].method)

			if tt.wantSuccess {
				assert.Equal(t, "Payment successful", res.Message)
				assert.Regexp(t, `^TX-\d{8}$`, res.TransactionID)
				require.NotNil(t, res.Amount)
				assert.True(t, o.TotalAmount.Equal(*res.Amount))
				assert.NotNil(t, res.Timestamp)
			} else {
				assert.Equal(t, "Payment failed, please try again later", res.Message)
				assert.Regexp(t, `^ERR-\d{4}$`, res.ErrorCode)
				assert.Nil(t, res.Amount)
			}
		})
	}
}

func TestProcessPayment_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		prepare   func(store *ordertest.MemStore) int64
		method    string
		wantError error
	}{
		{
			name:      "missing order: not found",
			prepare:   func(*ordertest.MemStore) int64 { return 404 },
			method:    "paypal",
			wantError: order.ErrNotFound,
		},
		{
			name: "already paid: conflict",
			prepare: func(store *ordertest.MemStore) int64 {
				return store.Put(order.Order{UserID: 1, Status: order.StatusPaid, PaymentStatus: order.PaymentStatusCompleted}).ID
			},
			method:    "paypal",
			wantError: order.ErrConflict,
		},
		{
			name: "shipped: conflict",
			prepare: func(store *ordertest.MemStore) int64 {
				return store.Put(order.Order{UserID: 1, Status: order.StatusShipped, PaymentStatus: "weird"}).ID
			},
			method:    "bank_transfer",
			wantError: order.ErrConflict,
		},
		{
			name: "unknown method: validation",
			prepare: func(store *ordertest.MemStore) int64 {
				return pendingOrder(store).ID
			},
			method:    "barter",
			wantError: order.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := ordertest.NewMemStore()
			id := tt.prepare(store)
			before := store.Orders()
			pub := &fakePublisher{}
			svc := payment.NewService(store, payment.FixedGateway{Approve: true}, pub, 0, nil)

			res, err := svc.ProcessPayment(t.Context(), id, tt.method)
			require.ErrorIs(t, err, tt.wantError)
			assert.Nil(t, res)

			// payment_status and status are untouched
			assert.Equal(t, before, store.Orders())
			assert.Zero(t, store.Mutations())
			assert.Empty(t, pub.events)
		})
	}
}

func TestProcessPayment_ConflictMessage(t *testing.T) {
	store := ordertest.NewMemStore()
	o := store.Put(order.Order{UserID: 1, Status: order.StatusDelivered})
	svc := payment.NewService(store, payment.FixedGateway{Approve: true}, nil, 0, nil)

	_, err := svc.ProcessPayment(t.Context(), o.ID, "paypal")

	var conflict *order.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Order status is delivered, cannot process payment", conflict.Error())
}

func TestProcessPayment_PublishFailureKeepsResult(t *testing.T) {
	store := ordertest.NewMemStore()
	o := pendingOrder(store)
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := payment.NewService(store, payment.FixedGateway{Approve: true}, pub, 0, nil)

	res, err := svc.ProcessPayment(t.Context(), o.ID, "credit_card")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestProcessPayment_GatewayFault(t *testing.T) {
	store := ordertest.NewMemStore()
	o := pendingOrder(store)
	svc := payment.NewService(store, payment.FixedGateway{Err: errors.New("timeout")}, nil, 0, nil)

	_, err := svc.ProcessPayment(t.Context(), o.ID, "credit_card")
	require.Error(t, err)
	assert.Zero(t, store.Mutations())
}

func TestVerifyPaymentStatus(t *testing.T) {
	tests := []struct {
		name          string
		paymentStatus string
		want          payment.Verification
	}{
		{
			name:          "completed",
			paymentStatus: order.PaymentStatusCompleted,
			want:          payment.Verification{Verified: true, Status: "completed", Message: "Payment completed"},
		},
		{
			name:          "pending",
			paymentStatus: order.PaymentStatusPending,
			want:          payment.Verification{Verified: true, Status: "pending", Message: "Payment processing"},
		},
		{
			name:          "failed",
			paymentStatus: order.PaymentStatusFailed,
			want:          payment.Verification{Verified: true, Status: "failed", Message: "Payment failed"},
		},
		{
			name:          "unrecognized status reads as failed",
			paymentStatus: "refunded",
			want:          payment.Verification{Verified: true, Status: "failed", Message: "Payment failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := ordertest.NewMemStore()
			o := store.Put(order.Order{UserID: 1, Status: order.StatusPending, PaymentStatus: tt.paymentStatus})
			svc := payment.NewService(store, payment.FixedGateway{}, nil, 0, nil)

			got, err := svc.VerifyPaymentStatus(t.Context(), o.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
			assert.Zero(t, store.Mutations())
		})
	}

	t.Run("missing order", func(t *testing.T) {
		svc := payment.NewService(ordertest.NewMemStore(), payment.FixedGateway{}, nil, 0, nil)
		_, err := svc.VerifyPaymentStatus(t.Context(), 1)
		require.ErrorIs(t, err, order.ErrNotFound)
	})
}

func TestRandomGateway_Rate(t *testing.T) {
	tests := []struct {
		name         string
		rate         float64
		wantApproved bool
	}{
		{name: "always", rate: 1, wantApproved: true},
		{name: "never", rate: 0, wantApproved: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := payment.NewRandomGateway(tt.rate)
			for i := 0; i < 50; i++ {
				auth, err := g.Authorize(t.Context(), 1, decimal.NewFromInt(1), order.PaymentPayPal)
				require.NoError(t, err)
				assert.Equal(t, tt.wantApproved, auth.Approved)
				if auth.Approved {
					assert.Regexp(t, `^TX-\d{8}$`, auth.TransactionID)
				} else {
					assert.Regexp(t, `^ERR-\d{4}$`, auth.ErrorCode)
				}
			}
		})
	}
}
