package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-pipeline/internal/database"
	"github.com/MikeMC777/ordenes-pipeline/internal/product"
)

const orderNumberConstraint = "orders_order_number_key"

// ErrDuplicateOrderNumber is returned by InsertOrder when the generated number is taken.
var ErrDuplicateOrderNumber = errors.New("duplicate order number")

// TxStore holds the writes order creation performs inside a single transaction.
type TxStore interface {
	InsertOrder(ctx context.Context, o *Order) error
	InsertItem(ctx context.Context, it *Item) error
	SetTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
	Products() product.Reader
}

type Store interface {
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx TxStore) error) error

	GetByID(ctx context.Context, id int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64, offset, limit int) ([]Order, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (*Order, error)

	// SettlePayment records a gateway outcome on a pending order. A non-pending order
	// yields a *ConflictError and is left untouched.
	SettlePayment(ctx context.Context, id int64, paymentStatus string, paid bool) (*Order, error)

	// MarkPaid advances a pending order whose payment completed. It reports whether a row changed.
	MarkPaid(ctx context.Context, id int64) (*Order, bool, error)
}

type PGStore struct{ db database.DBTX }

func NewPGStore(db database.DBTX) *PGStore { return &PGStore{db: db} }

const orderColumns = `id, order_number, user_id, total_amount::text, status, payment_method, payment_status, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o      Order
		total  string
		method *string
	)
	if err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &total, &o.Status, &method, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	o.TotalAmount, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("decimal.NewFromString: %w", err)
	}
	if method != nil {
		pm := PaymentMethod(*method)
		o.PaymentMethod = &pm
	}
	return &o, nil
}

func (r *PGStore) InTx(ctx context.Context, fn func(tx TxStore) error) error {
	_, err := database.WithTx(ctx, r.db, func(tx pgx.Tx) (struct{}, error) {
		return struct{}{}, fn(&pgTxStore{tx: tx})
	})
	return err
}

func (r *PGStore) GetByID(ctx context.Context, id int64) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("orders.GetByID: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("orders.GetByID: %w", err)
	}

	items, err := r.itemsFor(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *PGStore) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
    SELECT `+orderColumns+`
    FROM orders WHERE user_id=$1
    ORDER BY id LIMIT $2 OFFSET $3
  `, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("orders.ListByUser: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("orders.ListByUser: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders.ListByUser: %w", err)
	}

	items, err := r.itemsFor(ctx, lo.Map(out, func(o Order, _ int) int64 { return o.ID }))
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *PGStore) itemsFor(ctx context.Context, orderIDs []int64) (map[int64][]Item, error) {
	if len(orderIDs) == 0 {
		return map[int64][]Item{}, nil
	}

	rows, err := r.db.Query(ctx, `
    SELECT id, order_id, product_id, quantity, price::text
    FROM order_items WHERE order_id = ANY($1)
    ORDER BY id
  `, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("orders.itemsFor: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it    Item
			price string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &price); err != nil {
			return nil, fmt.Errorf("orders.itemsFor: %w", err)
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("decimal.NewFromString: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders.itemsFor: %w", err)
	}

	return lo.GroupBy(items, func(it Item) int64 { return it.OrderID }), nil
}

func (r *PGStore) UpdateStatus(ctx context.Context, id int64, status Status) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, `
    UPDATE orders
    SET status = $2, updated_at = NOW()
    WHERE id = $1
    RETURNING `+orderColumns, id, string(status)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("orders.UpdateStatus: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("orders.UpdateStatus: %w", err)
	}
	return o, nil
}

func (r *PGStore) SettlePayment(ctx context.Context, id int64, paymentStatus string, paid bool) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, `
    UPDATE orders
    SET payment_status = $2,
        status = CASE WHEN $3 THEN 'paid' ELSE status END,
        updated_at = NOW()
    WHERE id = $1 AND status = 'pending'
    RETURNING `+orderColumns, id, paymentStatus, paid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainMiss(ctx, id, "orders.SettlePayment")
	}
	if err != nil {
		return nil, fmt.Errorf("orders.SettlePayment: %w", err)
	}
	return o, nil
}

func (r *PGStore) MarkPaid(ctx context.Context, id int64) (*Order, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, `
    UPDATE orders
    SET status = 'paid', updated_at = NOW()
    WHERE id = $1 AND status = 'pending' AND payment_status = 'completed'
    RETURNING `+orderColumns, id))
	if err == nil {
		return o, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("orders.MarkPaid: %w", err)
	}

	current, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("orders.MarkPaid: %w", ErrNotFound)
	}
	if err != nil {
		return nil, false, fmt.Errorf("orders.MarkPaid: %w", err)
	}
	return current, false, nil
}

// explainMiss turns a guarded update that touched no row into NotFound or Conflict.
func (r *PGStore) explainMiss(ctx context.Context, id int64, op string) error {
	var status Status
	err := r.db.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, &ConflictError{OrderID: id, Status: status})
}

type pgTxStore struct{ tx pgx.Tx }

func (s *pgTxStore) Products() product.Reader { return product.NewPGRepo(s.tx) }

func (s *pgTxStore) InsertOrder(ctx context.Context, o *Order) error {
	var method *string
	if o.PaymentMethod != nil {
		method = lo.ToPtr(string(*o.PaymentMethod))
	}

	err := s.tx.QueryRow(ctx, `
    INSERT INTO orders (order_number, user_id, total_amount, status, payment_method, payment_status, created_at, updated_at)
    VALUES ($1,$2,0,'pending',$3,'pending',NOW(),NOW())
    RETURNING id, status, payment_status, created_at, updated_at
  `, o.OrderNumber, o.UserID, method).Scan(&o.ID, &o.Status, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt)
	if database.IsUniqueViolation(err, orderNumberConstraint) {
		return fmt.Errorf("orders.InsertOrder: %w", ErrDuplicateOrderNumber)
	}
	if err != nil {
		return fmt.Errorf("orders.InsertOrder: %w", err)
	}
	o.TotalAmount = decimal.Zero
	return nil
}

func (s *pgTxStore) InsertItem(ctx context.Context, it *Item) error {
	err := s.tx.QueryRow(ctx, `
      INSERT INTO order_items (order_id, product_id, quantity, price)
      VALUES ($1,$2,$3,$4)
      RETURNING id
    `, it.OrderID, it.ProductID, it.Quantity, it.Price.String()).Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("orders.InsertItem: %w", err)
	}
	return nil
}

func (s *pgTxStore) SetTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	if _, err := s.tx.Exec(ctx, `
    UPDATE orders SET total_amount = $2, updated_at = NOW() WHERE id = $1
  `, orderID, total.String()); err != nil {
		return fmt.Errorf("orders.SetTotal: %w", err)
	}
	return nil
}
