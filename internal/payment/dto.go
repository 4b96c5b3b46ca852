package payment

// ProcessPaymentRequest charges an existing order.
// swagger:model ProcessPaymentRequest
type ProcessPaymentRequest struct {
	OrderID       int64  `json:"order_id"       example:"1"`
	PaymentMethod string `json:"payment_method" example:"credit_card"`
}
