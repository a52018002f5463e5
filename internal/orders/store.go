package orders

import (
	"context"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

// Store persists orders and runs multi-step writes atomically.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, buyerID int64) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

// Tx is the set of writes available inside Store.InTx. Nothing is visible to
// other transactions until fn returns nil.
type Tx interface {
	CartLines(ctx context.Context, buyerID int64) ([]domain.CartLine, error)
	ClearCart(ctx context.Context, buyerID int64) error
	ReserveStock(ctx context.Context, productID int64, quantity int) error
	RestoreStock(ctx context.Context, productID int64, quantity int) (bool, error)

	CreateOrder(ctx context.Context, order *domain.Order) error
	LockOrder(ctx context.Context, id string) (*domain.Order, error)
	LockOrderByIntent(ctx context.Context, intentID string) (*domain.Order, error)
	SetPaymentIntent(ctx context.Context, orderID, intentID string) error
	SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error

	CreatePayment(ctx context.Context, payment *domain.Payment) error
	PaymentForOrder(ctx context.Context, orderID string) (*domain.Payment, error)
	SetPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error

	CreateRefund(ctx context.Context, refund *domain.Refund) error

	// RecordEvent stores a processor event id. It reports false when the id was already recorded.
	RecordEvent(ctx context.Context, eventID string, eventType domain.PaymentEventType) (bool, error)
}

type PaymentGateway interface {
	PublishableKey() string
	CreateIntent(ctx context.Context, req domain.IntentRequest) (*domain.Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	CreateRefund(ctx context.Context, req domain.RefundRequest) (*domain.ProcessorRefund, error)
	ParseEvent(payload []byte, signature string) (*domain.PaymentEvent, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, key, eventType string, event any) error
}

// IdempotencyStore guards a request key so a retried checkout replays the
// first response instead of creating a second order.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key string, value []byte) error
	Recall(ctx context.Context, scope, key string) ([]byte, bool, error)
	Release(ctx context.Context, scope, key string) error
}
