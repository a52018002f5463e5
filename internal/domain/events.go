package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderCancelled = "order.cancelled"
	EventOrderRefunded  = "order.refunded"
)

type OrderEvent struct {
	Type       string          `json:"type"`
	OrderID    string          `json:"order_id"`
	BuyerID    *int64          `json:"buyer_id"`
	BuyerEmail string          `json:"buyer_email,omitempty"`
	Status     OrderStatus     `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Timestamp  time.Time       `json:"timestamp"`
}

func NewOrderEvent(eventType string, order *Order, amount decimal.Decimal, currency string, at time.Time) OrderEvent {
	return OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		BuyerID:    order.BuyerID,
		BuyerEmail: order.BuyerEmail,
		Status:     order.Status,
		Amount:     amount,
		Currency:   currency,
		Timestamp:  at,
	}
}
