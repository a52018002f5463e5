package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type Payment struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	IntentID  *string         `json:"intent_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    PaymentStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type IntentRequest struct {
	AmountMinor    int64
	Currency       string
	OrderID        string
	BuyerID        int64
	IdempotencyKey string
}

type Intent struct {
	ID           string
	ClientSecret string
}

type RefundRequest struct {
	IntentID       string
	AmountMinor    int64
	Reason         RefundReason
	IdempotencyKey string
}

type ProcessorRefund struct {
	ID        string
	Succeeded bool
}

type PaymentEventType string

const (
	PaymentEventSucceeded PaymentEventType = "payment_intent.succeeded"
	PaymentEventFailed    PaymentEventType = "payment_intent.payment_failed"
)

// PaymentEvent is a verified notification from the payment processor.
// IntentID is only populated for payment intent events.
type PaymentEvent struct {
	ID       string
	Type     PaymentEventType
	IntentID string
}
