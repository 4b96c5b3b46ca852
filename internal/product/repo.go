// Package product is the catalog store orders price their lines from.
package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-pipeline/internal/database"
)

var (
	ErrNotFound = errors.New("product not found")
)

// Reader is the narrow view the order pipeline needs from the catalog.
type Reader interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
}

type PGRepo struct{ db database.DBTX }

// NewPGRepo works over a pool or over an open transaction.
func NewPGRepo(db database.DBTX) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Create(ctx context.Context, p *Product) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO products (name, description, price, created_at, updated_at)
		VALUES ($1,$2,$3,NOW(),NOW())
		RETURNING id, created_at, updated_at
	`, p.Name, p.Description, p.Price.String()).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("products.Create: %w", err)
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		p     Product
		price string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, description, price::text, created_at, updated_at
		FROM products WHERE id=$1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &price, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("products.GetByID: %w", err)
	}

	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("decimal.NewFromString: %w", err)
	}
	return &p, nil
}

// UpdatePrice changes the live catalog price. Existing order items keep their snapshot.
func (r *PGRepo) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE products
		SET price = $2, updated_at = NOW()
		WHERE id = $1
	`, id, price.String())
	if err != nil {
		return fmt.Errorf("products.UpdatePrice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
