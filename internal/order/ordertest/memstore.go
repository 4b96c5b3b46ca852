// Package ordertest provides an in-memory order.Store for unit tests.
package ordertest

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-pipeline/internal/order"
	"github.com/MikeMC777/ordenes-pipeline/internal/product"
)

// MemStore mirrors the guarded updates of order.PGStore. Transactions are serialized
// and rolled back by restoring a snapshot.
type MemStore struct {
	mu sync.Mutex

	orders   map[int64]order.Order
	products map[int64]product.Product
	numbers  map[string]struct{}

	nextOrderID int64
	nextItemID  int64
	mutations   int
}

func NewMemStore() *MemStore {
	return &MemStore{
		orders:   map[int64]order.Order{},
		products: map[int64]product.Product{},
		numbers:  map[string]struct{}{},
	}
}

func (s *MemStore) AddProduct(name string, price decimal.Decimal) product.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := product.Product{
		ID:        int64(len(s.products) + 1),
		Name:      name,
		Price:     price,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.products[p.ID] = p
	return p
}

// Put stores o as-is, assigning an id when it has none.
func (s *MemStore) Put(o order.Order) order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == 0 {
		s.nextOrderID++
		o.ID = s.nextOrderID
	}
	if o.OrderNumber == "" {
		o.OrderNumber = order.NewOrderNumber()
	}
	s.numbers[o.OrderNumber] = struct{}{}
	s.orders[o.ID] = cloneOrder(o)
	return o
}

func (s *MemStore) Orders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]order.Order, 0, len(s.orders))
	for _, id := range slices.Sorted(maps.Keys(s.orders)) {
		out = append(out, cloneOrder(s.orders[id]))
	}
	return out
}

func (s *MemStore) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, o := range s.orders {
		n += len(o.Items)
	}
	return n
}

// Mutations counts rows changed by status or payment updates.
func (s *MemStore) Mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutations
}

func (s *MemStore) InTx(ctx context.Context, fn func(tx order.TxStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := maps.Clone(s.orders)
	numbers := maps.Clone(s.numbers)
	nextOrderID, nextItemID := s.nextOrderID, s.nextItemID

	if err := fn(&memTx{s: s}); err != nil {
		s.orders, s.numbers = orders, numbers
		s.nextOrderID, s.nextItemID = nextOrderID, nextItemID
		return err
	}
	return nil
}

func (s *MemStore) GetByID(_ context.Context, id int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("orders.GetByID: %w", order.ErrNotFound)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (s *MemStore) ListByUser(_ context.Context, userID int64, offset, limit int) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var out []order.Order
	for _, id := range slices.Sorted(maps.Keys(s.orders)) {
		if o := s.orders[id]; o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[max(offset, 0):]
	return out[:min(limit, len(out))], nil
}

func (s *MemStore) UpdateStatus(_ context.Context, id int64, status order.Status) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("orders.UpdateStatus: %w", order.ErrNotFound)
	}
	o.Status = status
	return s.save(o), nil
}

func (s *MemStore) SettlePayment(_ context.Context, id int64, paymentStatus string, paid bool) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("orders.SettlePayment: %w", order.ErrNotFound)
	}
	if o.Status != order.StatusPending {
		return nil, fmt.Errorf("orders.SettlePayment: %w", &order.ConflictError{OrderID: id, Status: o.Status})
	}
	o.PaymentStatus = paymentStatus
	if paid {
		o.Status = order.StatusPaid
	}
	return s.save(o), nil
}

func (s *MemStore) MarkPaid(_ context.Context, id int64) (*order.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, false, fmt.Errorf("orders.MarkPaid: %w", order.ErrNotFound)
	}
	if o.Status != order.StatusPending || o.PaymentStatus != order.PaymentStatusCompleted {
		o = cloneOrder(o)
		return &o, false, nil
	}
	o.Status = order.StatusPaid
	return s.save(o), true, nil
}

func (s *MemStore) save(o order.Order) *order.Order {
	o.UpdatedAt = time.Now()
	s.orders[o.ID] = cloneOrder(o)
	s.mutations++
	return &o
}

func cloneOrder(o order.Order) order.Order {
	o.Items = slices.Clone(o.Items)
	return o
}

type memTx struct{ s *MemStore }

func (t *memTx) Products() product.Reader { return memProducts{s: t.s} }

func (t *memTx) InsertOrder(_ context.Context, o *order.Order) error {
	if _, taken := t.s.numbers[o.OrderNumber]; taken {
		return fmt.Errorf("orders.InsertOrder: %w", order.ErrDuplicateOrderNumber)
	}
	t.s.nextOrderID++
	o.ID = t.s.nextOrderID
	o.Status = order.StatusPending
	o.PaymentStatus = order.PaymentStatusPending
	o.TotalAmount = decimal.Zero
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt

	t.s.numbers[o.OrderNumber] = struct{}{}
	t.s.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (t *memTx) InsertItem(_ context.Context, it *order.Item) error {
	o, ok := t.s.orders[it.OrderID]
	if !ok {
		return fmt.Errorf("orders.InsertItem: %w", order.ErrNotFound)
	}
	t.s.nextItemID++
	it.ID = t.s.nextItemID
	o.Items = append(slices.Clone(o.Items), *it)
	t.s.orders[o.ID] = o
	return nil
}

func (t *memTx) SetTotal(_ context.Context, orderID int64, total decimal.Decimal) error {
	o, ok := t.s.orders[orderID]
	if !ok {
		return fmt.Errorf("orders.SetTotal: %w", order.ErrNotFound)
	}
	o.TotalAmount = total
	t.s.orders[orderID] = o
	return nil
}

// memProducts is only used while InTx holds the store lock.
type memProducts struct{ s *MemStore }

func (r memProducts) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}
