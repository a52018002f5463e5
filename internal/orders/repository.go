package orders

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/shopflow/internal/cart"
	"github.com/joao-fontenele/shopflow/internal/database"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/inventory"
)

const selectOrder = `
	SELECT o.id, o.buyer_id, COALESCE(u.email, ''), o.status, o.total_price,
		o.payment_intent_id, o.created_at, o.updated_at
	FROM orders o
	LEFT JOIN users u ON u.id = o.buyer_id
`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) InTx(ctx context.Context, fn func(Tx) error) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&txRepository{
			tx:        tx,
			inventory: inventory.NewInventoryRepository(tx),
			cart:      cart.NewCartRepository(tx),
		})
	})
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return getOrder(ctx, r.db, selectOrder+`WHERE o.id = $1`, id)
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetOrder(ctx, id)
}

// ListOrders returns a buyer's orders newest first, loading all items in one query.
func (r *OrderRepository) ListOrders(ctx context.Context, buyerID int64) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, selectOrder+`
		WHERE o.buyer_id = $1
		ORDER BY o.created_at DESC
	`, buyerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	items, err := loadItems(ctx, r.db, orderIDs)
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		order := orderMap[id]
		if found, ok := items[id]; ok {
			order.Items = found
		}
		orders = append(orders, *order)
	}

	return orders, nil
}

type txRepository struct {
	tx        *sql.Tx
	inventory *inventory.InventoryRepository
	cart      *cart.CartRepository
}

func (t *txRepository) CartLines(ctx context.Context, buyerID int64) ([]domain.CartLine, error) {
	return t.cart.LockLines(ctx, buyerID)
}

func (t *txRepository) ClearCart(ctx context.Context, buyerID int64) error {
	return t.cart.Clear(ctx, buyerID)
}

func (t *txRepository) ReserveStock(ctx context.Context, productID int64, quantity int) error {
	return t.inventory.Reserve(ctx, productID, quantity)
}

func (t *txRepository) RestoreStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	return t.inventory.Restore(ctx, productID, quantity)
}

func (t *txRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	order.ID = uuid.New().String()

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, buyer_id, status, total_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, order.ID, order.BuyerID, order.Status, order.TotalPrice, order.CreatedAt)
	if err != nil {
		return err
	}
	order.UpdatedAt = order.CreatedAt

	for i := range order.Items {
		item := &order.Items[i]
		// v7 ids are time ordered, so items read back in cart order.
		item.ID = uuid.Must(uuid.NewV7()).String()
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, seller_id, quantity, price_at_time, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, order.ID, item.ProductID, item.SellerID, item.Quantity, item.UnitPrice, item.Subtotal)
		if err != nil {
			return err
		}
	}

	return nil
}

func (t *txRepository) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	return getOrder(ctx, t.tx, selectOrder+`WHERE o.id = $1 FOR UPDATE OF o`, id)
}

func (t *txRepository) LockOrderByIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	return getOrder(ctx, t.tx, selectOrder+`WHERE o.payment_intent_id = $1 FOR UPDATE OF o`, intentID)
}

func (t *txRepository) SetPaymentIntent(ctx context.Context, orderID, intentID string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE orders SET payment_intent_id = $2, updated_at = NOW()
		WHERE id = $1
	`, orderID, intentID)
	return err
}

func (t *txRepository) SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, orderID, status)
	return err
}

func (t *txRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	payment.ID = uuid.New().String()

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, intent_id, amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, payment.ID, payment.OrderID, payment.IntentID, payment.Amount, payment.Currency, payment.Status, payment.CreatedAt)
	if err != nil {
		return err
	}
	payment.UpdatedAt = payment.CreatedAt

	return nil
}

func (t *txRepository) PaymentForOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	payment := &domain.Payment{}

	err := t.tx.QueryRowContext(ctx, `
		SELECT id, order_id, intent_id, amount, currency, status, created_at, updated_at
		FROM payments
		WHERE order_id = $1
	`, orderID).Scan(
		&payment.ID, &payment.OrderID, &payment.IntentID, &payment.Amount,
		&payment.Currency, &payment.Status, &payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return payment, nil
}

func (t *txRepository) SetPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE payments SET status = $2, updated_at = NOW()
		WHERE order_id = $1
	`, orderID, status)
	return err
}

func (t *txRepository) CreateRefund(ctx context.Context, refund *domain.Refund) error {
	refund.ID = uuid.New().String()

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO refunds (id, order_id, payment_id, external_refund_id, amount, reason, note, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, refund.ID, refund.OrderID, refund.PaymentID, refund.ExternalRefundID, refund.Amount,
		refund.Reason, sql.NullString{String: refund.Note, Valid: refund.Note != ""}, refund.Status, refund.CreatedAt)
	if err != nil {
		return err
	}
	refund.UpdatedAt = refund.CreatedAt

	return nil
}

func (t *txRepository) RecordEvent(ctx context.Context, eventID string, eventType domain.PaymentEventType) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO payment_events (event_id, type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID, &order.BuyerID, &order.BuyerEmail, &order.Status, &order.TotalPrice,
		&order.PaymentIntentID, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func getOrder(ctx context.Context, db database.DBTX, query string, arg any) (*domain.Order, error) {
	order, err := scanOrder(db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	items, err := loadItems(ctx, db, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}

	return order, nil
}

func loadItems(ctx context.Context, db database.DBTX, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT order_id, id, product_id, seller_id, quantity, price_at_time, subtotal
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(
			&orderID, &item.ID, &item.ProductID, &item.SellerID,
			&item.Quantity, &item.UnitPrice, &item.Subtotal,
		); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
