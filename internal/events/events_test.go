package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MikeMC777/ordenes-pipeline/internal/events"
	"github.com/MikeMC777/ordenes-pipeline/internal/messaging"
	"github.com/MikeMC777/ordenes-pipeline/internal/order"
	"github.com/MikeMC777/ordenes-pipeline/internal/order/ordertest"
	"github.com/MikeMC777/ordenes-pipeline/internal/payment"
	"github.com/MikeMC777/ordenes-pipeline/internal/tasks"
)

type published struct {
	exchange string
	key      string
	body     []byte
}

type fakeTransport struct {
	mu          sync.Mutex
	declareErrs []error
	declared    []messaging.Topology
	messages    []published
	publishErr  error
	closed      bool
}

func (f *fakeTransport) Declare(_ context.Context, t messaging.Topology) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.declareErrs) > 0 {
		err := f.declareErrs[0]
		f.declareErrs = f.declareErrs[1:]
		if err != nil {
			return err
		}
	}
	f.declared = append(f.declared, t)
	return nil
}

func (f *fakeTransport) Publish(_ context.Context, exchange, key string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.messages = append(f.messages, published{exchange: exchange, key: key, body: body})
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func (f *fakeTransport) Run(ctx context.Context, _ string, _ messaging.Handler) error {
	<-ctx.Done()
	return nil
}

type captureQueue struct {
	mu   sync.Mutex
	jobs []tasks.Job
}

func (q *captureQueue) Enqueue(_ context.Context, job tasks.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    events.Event
		wantErr error
	}{
		{
			name: "order created",
			body: `{"event_type":"order_created","order_id":7,"user_id":3,"total_amount":25.5,"timestamp":"2026-01-02T03:04:05Z"}`,
			want: events.OrderCreated{OrderID: 7, UserID: 3, TotalAmount: 25.5, Timestamp: events.NewTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))},
		},
		{
			name: "payment processed",
			body: `{"event_type":"payment_processed","order_id":7,"payment_status":"completed","payment_method":"paypal","timestamp":"2026-01-02T03:04:05Z"}`,
			want: events.PaymentProcessed{OrderID: 7, PaymentStatus: "completed", PaymentMethod: "paypal", Timestamp: events.NewTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))},
		},
		{
			name: "timestamp without offset",
			body: `{"event_type":"order_created","order_id":7,"user_id":3,"total_amount":25.5,"timestamp":"2024-05-01T12:30:00.123456"}`,
			want: events.OrderCreated{OrderID: 7, UserID: 3, TotalAmount: 25.5, Timestamp: events.NewTimestamp(time.Date(2024, 5, 1, 12, 30, 0, 123456000, time.UTC))},
		},
		{
			name: "space separated timestamp",
			body: `{"event_type":"payment_processed","order_id":7,"payment_status":"failed","payment_method":"paypal","timestamp":"2024-05-01 12:30:00"}`,
			want: events.PaymentProcessed{OrderID: 7, PaymentStatus: "failed", PaymentMethod: "paypal", Timestamp: events.NewTimestamp(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))},
		},
		{
			name: "no timestamp",
			body: `{"event_type":"payment_processed","order_id":7,"payment_status":"completed","payment_method":"paypal"}`,
			want: events.PaymentProcessed{OrderID: 7, PaymentStatus: "completed", PaymentMethod: "paypal"},
		},
		{name: "garbage timestamp", body: `{"event_type":"order_created","order_id":7,"timestamp":"yesterday"}`, wantErr: events.ErrMalformedEvent},
		{name: "not json", body: `{{{`, wantErr: events.ErrMalformedEvent},
		{name: "no discriminator", body: `{"order_id":1}`, wantErr: events.ErrMalformedEvent},
		{name: "unknown type", body: `{"event_type":"order_refunded","order_id":1}`, wantErr: events.ErrUnknownEvent},
		{name: "wrong field type", body: `{"event_type":"order_created","order_id":"seven"}`, wantErr: events.ErrMalformedEvent},
		{name: "missing order id", body: `{"event_type":"payment_processed","payment_status":"completed"}`, wantErr: events.ErrMalformedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := events.Decode([]byte(tt.body))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_WireShape(t *testing.T) {
	ts := events.NewTimestamp(time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC))

	body, err := events.Encode(events.PaymentProcessed{OrderID: 4, PaymentStatus: "failed", PaymentMethod: "credit_card", Timestamp: ts})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event_type":"payment_processed","order_id":4,"payment_status":"failed","payment_method":"credit_card","timestamp":"2026-05-06T07:08:09Z"}`, string(body))

	body, err = events.Encode(events.OrderCreated{OrderID: 4, UserID: 2, TotalAmount: 10, Timestamp: ts})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event_type":"order_created","order_id":4,"user_id":2,"total_amount":10,"timestamp":"2026-05-06T07:08:09Z"}`, string(body))

	back, err := events.Decode(body)
	require.NoError(t, err)
	assert.Equal(t, events.OrderCreated{OrderID: 4, UserID: 2, TotalAmount: 10, Timestamp: ts}, back)
}

func TestProducer_DeclaresOnceAndRetriesFailedDeclare(t *testing.T) {
	tr := &fakeTransport{declareErrs: []error{errors.New("broker down")}}
	p := events.NewProducer(tr, nil)
	o := &order.Order{ID: 1, UserID: 2, TotalAmount: decimal.RequireFromString("12.50")}

	require.Error(t, p.PublishOrderCreated(t.Context(), o))
	assert.Empty(t, tr.messages)

	require.NoError(t, p.PublishOrderCreated(t.Context(), o))
	require.NoError(t, p.PublishOrderCreated(t.Context(), o))

	require.Len(t, tr.declared, 1)
	assert.Equal(t, events.Topology, tr.declared[0])
	require.Len(t, tr.messages, 2)
	assert.Equal(t, events.Exchange, tr.messages[0].exchange)
	assert.Equal(t, events.KeyOrderCreated, tr.messages[0].key)

	var env map[string]any
	require.NoError(t, json.Unmarshal(tr.messages[0].body, &env))
	assert.Equal(t, "order_created", env["event_type"])
	assert.InDelta(t, 12.5, env["total_amount"], 1e-9)

	require.NoError(t, p.Close())
	assert.True(t, tr.closed)
}

func TestTopology(t *testing.T) {
	b, ok := events.Topology.Queue(events.QueueOrderShipped)
	require.True(t, ok)
	assert.Equal(t, "order.shipped", b.RoutingKey)
	assert.Equal(t, "order_events", events.Topology.Exchange)
	assert.Len(t, events.Topology.Bindings, 3)
}

// Create an order of 2 x 10.00 + 1 x 5.00, pay it with an approving gateway and check
// the event on order.payment.
func TestPaymentFlow_PublishesCompletedOnOrderPayment(t *testing.T) {
	store := ordertest.NewMemStore()
	a := store.AddProduct("A", decimal.RequireFromString("10.00"))
	b := store.AddProduct("B", decimal.RequireFromString("5.00"))

	tr := &fakeTransport{}
	producer := events.NewProducer(tr, nil)

	orders := order.NewService(store, producer)
	created, err := orders.CreateOrder(t.Context(), 1, order.CreateOrderRequest{Items: []order.CreateOrderItem{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 1},
	}})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("25.00").Equal(created.TotalAmount))
	assert.Equal(t, order.StatusPending, created.Status)

	payments := payment.NewService(store, payment.FixedGateway{Approve: true}, producer, time.Second, nil)
	res, err := payments.ProcessPayment(t.Context(), created.ID, "credit_card")
	require.NoError(t, err)
	assert.True(t, res.Success)

	stored, err := store.GetByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, stored.Status)
	assert.Equal(t, order.PaymentStatusCompleted, stored.PaymentStatus)

	require.Len(t, tr.messages, 2)
	assert.Equal(t, events.KeyOrderCreated, tr.messages[0].key)
	assert.Equal(t, events.KeyPayment, tr.messages[1].key)

	ev, err := events.Decode(tr.messages[1].body)
	require.NoError(t, err)
	paid, ok := ev.(events.PaymentProcessed)
	require.True(t, ok)
	assert.Equal(t, created.ID, paid.OrderID)
	assert.Equal(t, "completed", paid.PaymentStatus)
	assert.Equal(t, "credit_card", paid.PaymentMethod)
}

func TestConsumer_Handlers(t *testing.T) {
	tests := []struct {
		name     string
		queue    string
		body     string
		wantErr  error
		wantTask string
		wantArgs string
	}{
		{
			name:     "order created queues email",
			queue:    events.QueueOrderCreated,
			body:     `{"event_type":"order_created","order_id":5,"user_id":1,"total_amount":3,"timestamp":"2026-01-01T00:00:00Z"}`,
			wantTask: "send_order_confirmation_email",
			wantArgs: `{"order_id":5,"recipient":"ops@example.com"}`,
		},
		{
			name:     "completed payment queues verification",
			queue:    events.QueuePaymentProcessed,
			body:     `{"event_type":"payment_processed","order_id":5,"payment_status":"completed","payment_method":"paypal","timestamp":"2026-01-01T00:00:00Z"}`,
			wantTask: "verify_payment_status",
			wantArgs: `{"order_id":5}`,
		},
		{
			name:  "failed payment is observed only",
			queue: events.QueuePaymentProcessed,
			body:  `{"event_type":"payment_processed","order_id":5,"payment_status":"failed","payment_method":"paypal","timestamp":"2026-01-01T00:00:00Z"}`,
		},
		{
			name:    "undecodable body",
			queue:   events.QueueOrderCreated,
			body:    `not json`,
			wantErr: events.ErrMalformedEvent,
		},
		{
			name:    "event on the wrong queue",
			queue:   events.QueuePaymentProcessed,
			body:    `{"event_type":"order_created","order_id":5}`,
			wantErr: events.ErrUnknownEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &captureQueue{}
			c := events.NewConsumer(&fakeTransport{}, q, "ops@example.com", nil)

			handle := c.HandleOrderCreated
			if tt.queue == events.QueuePaymentProcessed {
				handle = c.HandlePaymentProcessed
			}

			err := handle(t.Context(), []byte(tt.body))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, q.jobs)
				return
			}
			require.NoError(t, err)

			if tt.wantTask == "" {
				assert.Empty(t, q.jobs)
				return
			}
			require.Len(t, q.jobs, 1)
			assert.Equal(t, tt.wantTask, q.jobs[0].Task)
			assert.JSONEq(t, tt.wantArgs, string(q.jobs[0].Args))
		})
	}
}

type recordingSource struct {
	fakeTransport

	mu     sync.Mutex
	queues []string
	fail   string
}

func (s *recordingSource) Run(ctx context.Context, queue string, _ messaging.Handler) error {
	s.mu.Lock()
	s.queues = append(s.queues, queue)
	s.mu.Unlock()
	if queue == s.fail {
		return errors.New("channel closed")
	}
	<-ctx.Done()
	return nil
}

func TestConsumer_Run(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("consumes every queue until cancelled", func(t *testing.T) {
		src := &recordingSource{}
		c := events.NewConsumer(src, &captureQueue{}, "x@example.com", nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- c.Run(ctx) }()

		require.Eventually(t, func() bool {
			src.mu.Lock()
			defer src.mu.Unlock()
			return len(src.queues) == 2
		}, time.Second, 5*time.Millisecond)
		cancel()
		require.NoError(t, <-done)

		sort.Strings(src.queues)
		assert.Equal(t, []string{"order_created", "payment_processed"}, src.queues)
		assert.Len(t, src.declared, 1)
	})

	t.Run("one queue failing stops the others", func(t *testing.T) {
		src := &recordingSource{fail: events.QueuePaymentProcessed}
		c := events.NewConsumer(src, &captureQueue{}, "x@example.com", nil)

		err := c.Run(t.Context())
		require.EqualError(t, err, "channel closed")
	})

	t.Run("unknown queue", func(t *testing.T) {
		c := events.NewConsumer(&recordingSource{}, &captureQueue{}, "x@example.com", nil)
		require.Error(t, c.Run(t.Context(), "order_shipped"))
	})

	t.Run("setup failure", func(t *testing.T) {
		src := &recordingSource{}
		src.declareErrs = []error{errors.New("broker down")}
		c := events.NewConsumer(src, &captureQueue{}, "x@example.com", nil)
		require.ErrorContains(t, c.Run(t.Context(), events.QueueOrderCreated), "broker down")
		assert.Empty(t, src.queues)
	})
}
