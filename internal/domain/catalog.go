package domain

import "github.com/shopspring/decimal"

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// In reports whether the role is one of allowed. An empty allowed set admits any role.
func (r Role) In(allowed ...Role) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Active   bool   `json:"is_active"`
	Verified bool   `json:"is_verified"`
}

// CartLine is a cart item joined with the current state of its product.
type CartLine struct {
	ProductID     int64
	ProductName   string
	Quantity      int
	PriceSnapshot decimal.Decimal
	ProductActive bool
	Stock         int
	SellerID      int64
}

type StockLevel struct {
	ProductID int64 `json:"product_id"`
	Stock     int   `json:"stock"`
}
