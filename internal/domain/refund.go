package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusFailed    RefundStatus = "failed"
)

type RefundReason string

const (
	RefundReasonDuplicate           RefundReason = "duplicate"
	RefundReasonFraudulent          RefundReason = "fraudulent"
	RefundReasonRequestedByCustomer RefundReason = "requested_by_customer"
)

func (r RefundReason) Valid() bool {
	switch r {
	case RefundReasonDuplicate, RefundReasonFraudulent, RefundReasonRequestedByCustomer:
		return true
	}
	return false
}

type Refund struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	PaymentID        *string         `json:"payment_id"`
	ExternalRefundID *string         `json:"external_refund_id"`
	Amount           decimal.Decimal `json:"amount"`
	Reason           RefundReason    `json:"reason"`
	Note             string          `json:"note,omitempty"`
	Status           RefundStatus    `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
