package model

import "time"

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventRefundRequested    = "order.refund_requested"
	EventOrderPaid          = "order.paid"
)

// OrderEvent is published to the order events topic, keyed by order id.
type OrderEvent struct {
	Type          string        `json:"type"`
	OrderID       string        `json:"orderId"`
	OrderNumber   string        `json:"orderNumber"`
	UserID        string        `json:"userId"`
	Email         string        `json:"email"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Total         int64         `json:"total"`
	Timestamp     time.Time     `json:"timestamp"`
}
