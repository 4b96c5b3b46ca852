package order

// CreateOrderItem is one requested line.
// swagger:model CreateOrderItem
type CreateOrderItem struct {
	ProductID int64 `json:"product_id" example:"1"`
	Quantity  int   `json:"quantity"   example:"2"`
}

// CreateOrderRequest is the order creation payload. Totals are always computed server side.
// swagger:model CreateOrderRequest
type CreateOrderRequest struct {
	Items         []CreateOrderItem `json:"items"`
	PaymentMethod *PaymentMethod    `json:"payment_method,omitempty" example:"credit_card"`
}

// UpdateStatusRequest overwrites the order status.
// swagger:model UpdateStatusRequest
type UpdateStatusRequest struct {
	Status string `json:"status" example:"shipped"`
}

// HTTPError represents a standard error in JSON.
// swagger:model
type HTTPError struct {
	// Error message
	// example: order not found
	Error string `json:"error"`
}
