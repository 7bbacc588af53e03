package models

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Order is the pre-payment record returned by the core API. The transaction
// reference is generated server-side at creation and is the sole correlation
// key between a payment-gateway redirect and the order it belongs to. It is
// never reused.
type Order struct {
	OrderID        string      `json:"order_id"`
	CustomerID     string      `json:"customer_id,omitempty"` // empty for guest checkout
	ShowtimeID     string      `json:"showtime_id"`
	TransactionRef string      `json:"transaction_ref"`
	Total          int64       `json:"total"`
	Status         OrderStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
}

type CreateOrderRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
	ShowtimeID string `json:"showtime_id"`
	Total      int64  `json:"total"`
}
