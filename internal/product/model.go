package product

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is catalog data owned by the catalog service; orders only read it.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// swagger:model CreateProductRequest
type CreateProductRequest struct {
	Name        string `json:"name"        example:"Mouse"`
	Description string `json:"description" example:"wireless"`
	Price       string `json:"price"       example:"19.90"`
}

// swagger:model UpdatePriceRequest
type UpdatePriceRequest struct {
	Price string `json:"price" example:"17.50"`
}
