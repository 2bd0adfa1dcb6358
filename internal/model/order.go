package model

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending       OrderStatus = "pending"
	StatusProcessing    OrderStatus = "processing"
	StatusDelivered     OrderStatus = "delivered"
	StatusCancelled     OrderStatus = "cancelled"
	StatusPendingRefund OrderStatus = "pending_refund"
	StatusRefunded      OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

const (
	PaymentMethodCOD     = "cod"
	PaymentMethodZaloPay = "zalopay"
)

type ItemType string

const (
	ItemPet     ItemType = "pet"
	ItemProduct ItemType = "product"
)

const (
	FreeShippingThreshold int64 = 5_000_000
	ShippingFee           int64 = 30_000
)

var taxRate = decimal.RequireFromString("0.10")

var ErrInvalidTransition = errors.New("invalid status transition")

// The refund request path (delivered -> pending_refund) is deliberately not in
// this table; it goes through CanRequestRefund.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:       {StatusProcessing, StatusCancelled},
	StatusProcessing:    {StatusDelivered},
	StatusDelivered:     {},
	StatusPendingRefund: {StatusRefunded},
	StatusCancelled:     {},
	StatusRefunded:      {},
}

func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	return slices.Contains(transitions[s], target)
}

// CheckTransition returns an error wrapping ErrInvalidTransition when the
// status table does not allow from -> to.
func CheckTransition(from, to OrderStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: cannot change status from %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func (s OrderStatus) CanRequestRefund() bool {
	return s == StatusDelivered || s == StatusPendingRefund
}

type OrderItem struct {
	ID       string   `json:"id,omitempty"`
	Type     ItemType `json:"type"`
	ItemID   string   `json:"itemId"`
	Name     string   `json:"name"`
	Price    int64    `json:"price"`
	Quantity int      `json:"quantity"`
	Subtotal int64    `json:"subtotal"`
}

type ShippingAddress struct {
	FullName string `json:"fullName" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Address  string `json:"address" validate:"required"`
	Ward     string `json:"ward,omitempty"`
	District string `json:"district,omitempty"`
	City     string `json:"city" validate:"required"`
}

type RefundInfo struct {
	Reason        string    `json:"reason"`
	BankName      string    `json:"bankName"`
	AccountNumber string    `json:"accountNumber"`
	AccountName   string    `json:"accountName"`
	Amount        int64     `json:"amount"`
	Images        []string  `json:"images,omitempty"`
	RequestedAt   time.Time `json:"requestedAt"`
}

type Review struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Order struct {
	ID              string          `json:"id"`
	Number          string          `json:"orderNumber"`
	UserID          string          `json:"userId"`
	Items           []OrderItem     `json:"items"`
	TotalItems      int             `json:"totalItems"`
	Subtotal        int64           `json:"subtotal"`
	Tax             int64           `json:"tax"`
	Shipping        int64           `json:"shipping"`
	Total           int64           `json:"total"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentURL      string          `json:"paymentUrl,omitempty"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Notes           string          `json:"notes,omitempty"`
	RefundInfo      *RefundInfo     `json:"refundInfo,omitempty"`
	Reviews         []Review        `json:"reviews,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type Totals struct {
	TotalItems int
	Subtotal   int64
	Tax        int64
	Shipping   int64
	Total      int64
}

// Tax is 10% of the subtotal rounded to the nearest dong.
func Tax(subtotal int64) int64 {
	return decimal.NewFromInt(subtotal).Mul(taxRate).Round(0).IntPart()
}

func Shipping(subtotal int64) int64 {
	if subtotal > FreeShippingThreshold {
		return 0
	}
	return ShippingFee
}

// ComputeTotals fills in each item's subtotal and returns the order aggregates.
func ComputeTotals(items []OrderItem) Totals {
	var t Totals
	for i := range items {
		items[i].Subtotal = items[i].Price * int64(items[i].Quantity)
		t.TotalItems += items[i].Quantity
		t.Subtotal += items[i].Subtotal
	}
	t.Tax = Tax(t.Subtotal)
	t.Shipping = Shipping(t.Subtotal)
	t.Total = t.Subtotal + t.Tax + t.Shipping
	return t
}

func (o *Order) Recalculate() {
	t := ComputeTotals(o.Items)
	o.TotalItems = t.TotalItems
	o.Subtotal = t.Subtotal
	o.Tax = t.Tax
	o.Shipping = t.Shipping
	o.Total = t.Total
}

func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("ORD-%04d", seq)
}

func FallbackOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d", now.UnixMilli())
}

// StockAdjustment is one side effect of a status change: a product stock
// delta or a pet availability flip.
type StockAdjustment struct {
	Type       ItemType
	ItemID     string
	StockDelta int
	Available  *bool
}

// StockEffects lists what has to change in products and pets when an order
// moves from -> to. Product stock is taken at creation, so only cancellation
// and refund give it back. Pets are only reserved once processing starts.
func StockEffects(from, to OrderStatus, items []OrderItem) []StockAdjustment {
	var out []StockAdjustment
	switch {
	case from == StatusPending && to == StatusProcessing:
		for _, it := range items {
			if it.Type == ItemPet {
				out = append(out, StockAdjustment{Type: ItemPet, ItemID: it.ItemID, Available: boolPtr(false)})
			}
		}
	case from == StatusPending && to == StatusCancelled:
		for _, it := range items {
			if it.Type == ItemProduct {
				out = append(out, StockAdjustment{Type: ItemProduct, ItemID: it.ItemID, StockDelta: it.Quantity})
			}
		}
	case to == StatusRefunded:
		for _, it := range items {
			switch it.Type {
			case ItemProduct:
				out = append(out, StockAdjustment{Type: ItemProduct, ItemID: it.ItemID, StockDelta: it.Quantity})
			case ItemPet:
				out = append(out, StockAdjustment{Type: ItemPet, ItemID: it.ItemID, Available: boolPtr(true)})
			}
		}
	}
	return out
}

func boolPtr(b bool) *bool { return &b }
