package cart

import (
	"context"

	"github.com/joao-fontenele/shopflow/internal/database"
	"github.com/joao-fontenele/shopflow/internal/domain"
)

type CartRepository struct {
	db database.DBTX
}

func NewCartRepository(db database.DBTX) *CartRepository {
	return &CartRepository{db: db}
}

// LockLines returns the buyer's cart items joined with their products and locks
// the product rows until the surrounding transaction ends. Rows are locked in
// product id order so concurrent checkouts cannot deadlock.
func (r *CartRepository) LockLines(ctx context.Context, buyerID int64) ([]domain.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.product_id, p.name, ci.quantity, ci.price_at_time, p.is_active, p.stock, p.seller_id
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		JOIN products p ON p.id = ci.product_id
		WHERE c.user_id = $1
		ORDER BY ci.product_id
		FOR UPDATE OF p
	`, buyerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lines []domain.CartLine
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(
			&line.ProductID, &line.ProductName, &line.Quantity,
			&line.PriceSnapshot, &line.ProductActive, &line.Stock, &line.SellerID,
		); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

func (r *CartRepository) Clear(ctx context.Context, buyerID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1)
	`, buyerID)
	return err
}
