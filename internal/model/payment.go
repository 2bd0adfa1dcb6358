package model

import "time"

type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionSuccess TransactionStatus = "success"
	TransactionFailed  TransactionStatus = "failed"
)

type PaymentTransaction struct {
	ID         string            `json:"id"`
	OrderID    string            `json:"orderId"`
	AppTransID string            `json:"appTransId"`
	Amount     int64             `json:"amount"`
	Status     TransactionStatus `json:"status"`
	ZPTransID  string            `json:"zpTransId,omitempty"`
	OrderURL   string            `json:"orderUrl,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}
