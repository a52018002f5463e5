package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

// Service runs checkout, payment reconciliation and refunds. Every flow
// applies its writes in a single Store transaction.
type Service struct {
	store     Store
	gateway   PaymentGateway
	publisher EventPublisher
	idem      IdempotencyStore
	currency  string
	logger    *slog.Logger
	now       func() time.Time
	metrics   *metrics
}

type Option func(*Service)

// WithPublisher emits order lifecycle events after each committed transition.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithIdempotency enables replay of checkout responses keyed by the client's Idempotency-Key.
func WithIdempotency(store IdempotencyStore) Option {
	return func(s *Service) {
		s.idem = store
	}
}

func WithCurrency(currency string) Option {
	return func(s *Service) {
		s.currency = currency
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store Store, gateway PaymentGateway, opts ...Option) *Service {
	s := &Service{
		store:    store,
		gateway:  gateway,
		currency: "usd",
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		metrics:  newMetrics(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type CheckoutResult struct {
	OrderID        string          `json:"order_id"`
	ClientSecret   string          `json:"client_secret"`
	PublishableKey string          `json:"publishable_key"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

// Checkout turns the buyer's cart into a pending order with a payment intent.
// A non-empty idempotencyKey replays the first successful result for that key.
func (s *Service) Checkout(ctx context.Context, buyer domain.User, idempotencyKey string) (*CheckoutResult, error) {
	if idempotencyKey == "" || s.idem == nil {
		return s.checkout(ctx, buyer)
	}

	scope := "checkout:" + strconv.FormatInt(buyer.ID, 10)
	logger := s.logger.With("buyer_id", buyer.ID, "idempotency_key", idempotencyKey)

	if result, ok := s.recallCheckout(ctx, logger, scope, idempotencyKey); ok {
		return result, nil
	}

	locked, err := s.idem.TryLock(ctx, scope, idempotencyKey)
	if err != nil {
		logger.Warn("idempotency store unavailable, continuing without it", "error", err)
		return s.checkout(ctx, buyer)
	}
	if !locked {
		return nil, domain.ErrDuplicateRequest
	}

	// The first request may have finished between the recall and the lock.
	if result, ok := s.recallCheckout(ctx, logger, scope, idempotencyKey); ok {
		return result, nil
	}

	result, err := s.checkout(ctx, buyer)
	if err != nil {
		if releaseErr := s.idem.Release(context.WithoutCancel(ctx), scope, idempotencyKey); releaseErr != nil {
			logger.Warn("failed to release idempotency key", "error", releaseErr)
		}
		return nil, err
	}

	data, err := json.Marshal(result)
	if err == nil {
		err = s.idem.Remember(ctx, scope, idempotencyKey, data)
	}
	if err != nil {
		// Without a stored result the lock would turn every retry into a conflict.
		logger.Warn("failed to store checkout result", "error", err, "order_id", result.OrderID)
		if releaseErr := s.idem.Release(context.WithoutCancel(ctx), scope, idempotencyKey); releaseErr != nil {
			logger.Warn("failed to release idempotency key", "error", releaseErr)
		}
	}

	return result, nil
}

func (s *Service) recallCheckout(ctx context.Context, logger *slog.Logger, scope, key string) (*CheckoutResult, bool) {
	data, ok, err := s.idem.Recall(ctx, scope, key)
	if err != nil {
		logger.Warn("failed to read idempotency store", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var result CheckoutResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warn("discarding unreadable checkout result", "error", err)
		return nil, false
	}

	logger.Info("replaying checkout result", "order_id", result.OrderID)
	return &result, true
}

func (s *Service) checkout(ctx context.Context, buyer domain.User) (*CheckoutResult, error) {
	var (
		order  *domain.Order
		intent *domain.Intent
	)

	err := s.store.InTx(ctx, func(tx Tx) error {
		lines, err := tx.CartLines(ctx, buyer.ID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}

		items, err := orderItems(lines)
		if err != nil {
			return err
		}

		buyerID := buyer.ID
		order = &domain.Order{
			BuyerID:    &buyerID,
			BuyerEmail: buyer.Email,
			Status:     domain.OrderStatusPending,
			TotalPrice: domain.OrderTotal(items),
			Items:      items,
			CreatedAt:  s.now(),
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		intent, err = s.gateway.CreateIntent(ctx, domain.IntentRequest{
			AmountMinor:    domain.MinorUnits(order.TotalPrice),
			Currency:       s.currency,
			OrderID:        order.ID,
			BuyerID:        buyer.ID,
			IdempotencyKey: "checkout-" + order.ID,
		})
		if err != nil {
			return err
		}

		return s.reserve(ctx, tx, order, intent, lines)
	})
	if err != nil {
		if intent != nil {
			s.abandonIntent(ctx, order, intent, err)
		}
		s.metrics.checkout(ctx, outcome(err))
		s.logger.Warn("checkout failed", "error", err, "buyer_id", buyer.ID)
		return nil, err
	}

	s.metrics.checkout(ctx, outcome(nil))
	s.logger.Info("checkout completed",
		"order_id", order.ID,
		"intent_id", intent.ID,
		"buyer_id", buyer.ID,
		"total", order.TotalPrice.StringFixed(2),
	)
	s.publish(ctx, domain.EventOrderCreated, order, order.TotalPrice)

	return &CheckoutResult{
		OrderID:        order.ID,
		ClientSecret:   intent.ClientSecret,
		PublishableKey: s.gateway.PublishableKey(),
		Amount:         order.TotalPrice,
		Currency:       s.currency,
	}, nil
}

// reserve records the intent and payment, takes the stock and empties the cart.
func (s *Service) reserve(ctx context.Context, tx Tx, order *domain.Order, intent *domain.Intent, lines []domain.CartLine) error {
	if err := tx.SetPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		return fmt.Errorf("store payment intent: %w", err)
	}
	order.PaymentIntentID = &intent.ID

	payment := &domain.Payment{
		OrderID:   order.ID,
		IntentID:  &intent.ID,
		Amount:    order.TotalPrice,
		Currency:  s.currency,
		Status:    domain.PaymentStatusPending,
		CreatedAt: order.CreatedAt,
	}
	if err := tx.CreatePayment(ctx, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	for _, line := range lines {
		if err := tx.ReserveStock(ctx, line.ProductID, line.Quantity); err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				return &domain.ProductError{ProductID: line.ProductID, Name: line.ProductName, Err: err}
			}
			return fmt.Errorf("reserve stock for product %d: %w", line.ProductID, err)
		}
	}

	if err := tx.ClearCart(ctx, *order.BuyerID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	return nil
}

// abandonIntent cancels an intent whose order was rolled back. The processor
// state cannot be lost silently, so the failure is always logged with both ids.
func (s *Service) abandonIntent(ctx context.Context, order *domain.Order, intent *domain.Intent, cause error) {
	s.logger.Error("checkout rolled back after payment intent creation",
		"error", cause,
		"order_id", order.ID,
		"intent_id", intent.ID,
	)

	if err := s.gateway.CancelIntent(context.WithoutCancel(ctx), intent.ID); err != nil {
		s.logger.Error("failed to cancel orphaned payment intent",
			"error", err,
			"order_id", order.ID,
			"intent_id", intent.ID,
		)
	}
}

func orderItems(lines []domain.CartLine) ([]domain.OrderItem, error) {
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		if !line.ProductActive {
			return nil, &domain.ProductError{ProductID: line.ProductID, Name: line.ProductName, Err: domain.ErrProductUnavailable}
		}
		if line.Stock < line.Quantity {
			return nil, &domain.ProductError{ProductID: line.ProductID, Name: line.ProductName, Err: domain.ErrInsufficientStock}
		}
		items = append(items, domain.NewOrderItem(line.ProductID, line.SellerID, line.Quantity, line.PriceSnapshot))
	}

	return items, nil
}

// HandleNotification verifies and applies a payment processor notification.
// Redelivered and out-of-order events leave the order unchanged.
func (s *Service) HandleNotification(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		s.metrics.webhookEvent(ctx, "unverified", outcome(err))
		s.logger.Warn("rejected payment notification", "error", err)
		return err
	}

	logger := s.logger.With("event_id", event.ID, "event_type", event.Type, "intent_id", event.IntentID)

	if event.Type != domain.PaymentEventSucceeded && event.Type != domain.PaymentEventFailed {
		s.metrics.webhookEvent(ctx, string(event.Type), "ignored")
		logger.Debug("ignoring payment notification")
		return nil
	}

	var (
		order   *domain.Order
		applied bool
	)

	err = s.store.InTx(ctx, func(tx Tx) error {
		var err error
		order, err = tx.LockOrderByIntent(ctx, event.IntentID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if order == nil {
			logger.Warn("no order for payment intent")
			return nil
		}

		fresh, err := tx.RecordEvent(ctx, event.ID, event.Type)
		if err != nil {
			return fmt.Errorf("record event: %w", err)
		}
		if !fresh {
			logger.Info("duplicate payment notification", "order_id", order.ID)
			return nil
		}

		if event.Type == domain.PaymentEventSucceeded {
			applied, err = s.markPaid(ctx, tx, logger, order)
		} else {
			applied, err = s.markFailed(ctx, tx, logger, order)
		}
		return err
	})
	if err != nil {
		s.metrics.webhookEvent(ctx, string(event.Type), outcome(err))
		logger.Error("failed to apply payment notification", "error", err)
		return err
	}

	if !applied {
		s.metrics.webhookEvent(ctx, string(event.Type), "ignored")
		return nil
	}

	s.metrics.webhookEvent(ctx, string(event.Type), "applied")
	if order.Status == domain.OrderStatusPaid {
		s.publish(ctx, domain.EventOrderPaid, order, order.TotalPrice)
	} else {
		s.publish(ctx, domain.EventOrderCancelled, order, order.TotalPrice)
	}

	return nil
}

func (s *Service) markPaid(ctx context.Context, tx Tx, logger *slog.Logger, order *domain.Order) (bool, error) {
	logger = logger.With("order_id", order.ID, "status", order.Status)

	if order.Status != domain.OrderStatusPending {
		switch {
		case order.Status == domain.OrderStatusCancelled:
			logger.Error("payment succeeded for cancelled order, needs manual reconciliation")
		case order.Status.Terminal():
			logger.Info("order is closed, ignoring payment success")
		default:
			logger.Info("order already settled, ignoring payment success")
		}
		return false, nil
	}

	if err := tx.SetOrderStatus(ctx, order.ID, domain.OrderStatusPaid); err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	if err := tx.SetPaymentStatus(ctx, order.ID, domain.PaymentStatusSucceeded); err != nil {
		return false, fmt.Errorf("mark payment succeeded: %w", err)
	}

	order.Status = domain.OrderStatusPaid
	logger.Info("order paid")
	return true, nil
}

// markFailed cancels a pending order and returns its units to products that still exist.
func (s *Service) markFailed(ctx context.Context, tx Tx, logger *slog.Logger, order *domain.Order) (bool, error) {
	logger = logger.With("order_id", order.ID, "status", order.Status)

	if order.Status != domain.OrderStatusPending {
		if order.Status.Terminal() {
			logger.Info("order is closed, ignoring payment failure")
		} else {
			logger.Warn("payment failed for settled order, needs manual reconciliation")
		}
		return false, nil
	}

	if err := tx.SetOrderStatus(ctx, order.ID, domain.OrderStatusCancelled); err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}
	if err := tx.SetPaymentStatus(ctx, order.ID, domain.PaymentStatusFailed); err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}

	for _, item := range order.Items {
		if item.ProductID == nil {
			continue
		}
		restored, err := tx.RestoreStock(ctx, *item.ProductID, item.Quantity)
		if err != nil {
			return false, fmt.Errorf("restore stock for product %d: %w", *item.ProductID, err)
		}
		if !restored {
			logger.Warn("product no longer exists, stock not restored", "product_id", *item.ProductID)
		}
	}

	order.Status = domain.OrderStatusCancelled
	logger.Info("order cancelled after payment failure")
	return true, nil
}

type RefundInput struct {
	// Amount defaults to the order total when nil.
	Amount *decimal.Decimal
	Reason domain.RefundReason
	Note   string
}

// CreateRefund refunds a paid order through the processor. Nothing is written
// locally unless the processor accepts the refund.
func (s *Service) CreateRefund(ctx context.Context, orderID string, in RefundInput) (*domain.Refund, error) {
	if in.Reason == "" {
		in.Reason = domain.RefundReasonRequestedByCustomer
	}
	if !in.Reason.Valid() {
		return nil, fmt.Errorf("%w: unknown refund reason %q", domain.ErrValidation, in.Reason)
	}
	if !validID(orderID) {
		return nil, domain.ErrOrderNotFound
	}

	var (
		order     *domain.Order
		refund    *domain.Refund
		processed *domain.ProcessorRefund
	)

	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		if order.PaymentIntentID == nil {
			return domain.ErrNoPaymentIntent
		}
		if !order.Status.Refundable() {
			return fmt.Errorf("%w: order is %s", domain.ErrInvalidOrderState, order.Status)
		}

		amount, err := refundAmount(order, in.Amount)
		if err != nil {
			return err
		}

		minor := domain.MinorUnits(amount)
		processed, err = s.gateway.CreateRefund(ctx, domain.RefundRequest{
			IntentID:       *order.PaymentIntentID,
			AmountMinor:    minor,
			Reason:         in.Reason,
			IdempotencyKey: fmt.Sprintf("refund-%s-%d", order.ID, minor),
		})
		if err != nil {
			return err
		}

		payment, err := tx.PaymentForOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}

		refund = &domain.Refund{
			OrderID:          order.ID,
			ExternalRefundID: &processed.ID,
			Amount:           amount,
			Reason:           in.Reason,
			Note:             in.Note,
			Status:           domain.RefundStatusPending,
			CreatedAt:        s.now(),
		}
		if processed.Succeeded {
			refund.Status = domain.RefundStatusSucceeded
		}
		if payment != nil {
			refund.PaymentID = &payment.ID
		}

		if err := tx.CreateRefund(ctx, refund); err != nil {
			return fmt.Errorf("create refund: %w", err)
		}
		// A refund the processor still reports as pending marks the order refunded too.
		if err := tx.SetOrderStatus(ctx, order.ID, domain.OrderStatusRefunded); err != nil {
			return fmt.Errorf("mark order refunded: %w", err)
		}
		if err := tx.SetPaymentStatus(ctx, order.ID, domain.PaymentStatusRefunded); err != nil {
			return fmt.Errorf("mark payment refunded: %w", err)
		}

		order.Status = domain.OrderStatusRefunded
		return nil
	})
	if err != nil {
		if processed != nil {
			s.logger.Error("refund issued by processor but not recorded",
				"error", err,
				"order_id", orderID,
				"refund_id", processed.ID,
			)
		}
		s.metrics.refund(ctx, outcome(err))
		return nil, err
	}

	s.metrics.refund(ctx, outcome(nil))
	s.logger.Info("order refunded",
		"order_id", order.ID,
		"refund_id", refund.ID,
		"external_refund_id", processed.ID,
		"amount", refund.Amount.StringFixed(2),
		"refund_status", refund.Status,
	)
	s.publish(ctx, domain.EventOrderRefunded, order, refund.Amount)

	return refund, nil
}

func refundAmount(order *domain.Order, requested *decimal.Decimal) (decimal.Decimal, error) {
	if requested == nil {
		return order.TotalPrice, nil
	}

	amount := requested.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: refund amount must be positive", domain.ErrValidation)
	}
	if amount.GreaterThan(order.TotalPrice) {
		return decimal.Zero, fmt.Errorf("%w: refund amount %s exceeds order total %s",
			domain.ErrValidation, amount.StringFixed(2), order.TotalPrice.StringFixed(2))
	}

	return amount, nil
}

// UpdateStatus sets an order's status directly. Predecessor states are not checked.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", domain.ErrValidation, status)
	}
	if !validID(orderID) {
		return nil, domain.ErrOrderNotFound
	}

	order, err := s.store.UpdateStatus(ctx, orderID, status)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	s.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	return order, nil
}

// GetOrder returns an order visible to viewer: its buyer or an admin.
func (s *Service) GetOrder(ctx context.Context, orderID string, viewer domain.User) (*domain.Order, error) {
	if !validID(orderID) {
		return nil, domain.ErrOrderNotFound
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	if viewer.Role != domain.RoleAdmin && (order.BuyerID == nil || *order.BuyerID != viewer.ID) {
		return nil, fmt.Errorf("%w: order belongs to another buyer", domain.ErrForbidden)
	}

	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, buyer domain.User) ([]domain.Order, error) {
	orders, err := s.store.ListOrders(ctx, buyer.ID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) publish(ctx context.Context, eventType string, order *domain.Order, amount decimal.Decimal) {
	if s.publisher == nil {
		return
	}

	event := domain.NewOrderEvent(eventType, order, amount, s.currency, s.now())
	if err := s.publisher.Publish(ctx, order.ID, eventType, event); err != nil {
		s.logger.Error("failed to publish order event", "error", err, "order_id", order.ID, "event_type", eventType)
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
