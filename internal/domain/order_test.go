package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewOrderItem(t *testing.T) {
	item := NewOrderItem(7, 3, 3, decimal.RequireFromString("19.999"))

	if *item.ProductID != 7 || *item.SellerID != 3 {
		t.Fatalf("unexpected references: product %d seller %d", *item.ProductID, *item.SellerID)
	}
	if !item.Subtotal.Equal(decimal.RequireFromString("60.00")) {
		t.Errorf("expected subtotal 60.00, got %s", item.Subtotal)
	}
}

func TestOrderTotal(t *testing.T) {
	items := []OrderItem{
		NewOrderItem(1, 1, 2, decimal.RequireFromString("10.10")),
		NewOrderItem(2, 1, 1, decimal.RequireFromString("29.79")),
	}

	total := OrderTotal(items)
	if !total.Equal(decimal.RequireFromString("49.99")) {
		t.Errorf("expected total 49.99, got %s", total)
	}

	if !OrderTotal(nil).IsZero() {
		t.Error("expected zero total for no items")
	}
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"49.99", 4999},
		{"0.01", 1},
		{"10", 1000},
		{"0.125", 13},
		{"1234.5", 123450},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			if got := MinorUnits(decimal.RequireFromString(tt.amount)); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestOrderStatus(t *testing.T) {
	t.Run("refundable states", func(t *testing.T) {
		for _, s := range []OrderStatus{OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered} {
			if !s.Refundable() {
				t.Errorf("expected %s to be refundable", s)
			}
		}
		for _, s := range []OrderStatus{OrderStatusPending, OrderStatusCancelled, OrderStatusRefunded} {
			if s.Refundable() {
				t.Errorf("expected %s not to be refundable", s)
			}
		}
	})

	t.Run("terminal states", func(t *testing.T) {
		if !OrderStatusCancelled.Terminal() || !OrderStatusRefunded.Terminal() {
			t.Error("expected cancelled and refunded to be terminal")
		}
		if OrderStatusPaid.Terminal() {
			t.Error("expected paid not to be terminal")
		}
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		if OrderStatus("lost").Valid() {
			t.Error("expected unknown status to be invalid")
		}
		if !OrderStatusDelivered.Valid() {
			t.Error("expected delivered to be valid")
		}
	})
}

func TestRoleIn(t *testing.T) {
	if !RoleAdmin.In(RoleBuyer, RoleAdmin) {
		t.Error("expected admin in {buyer, admin}")
	}
	if RoleSeller.In(RoleAdmin) {
		t.Error("expected seller not in {admin}")
	}
	if !RoleSeller.In() {
		t.Error("expected empty allowed set to admit any role")
	}
}

func TestErrorClasses(t *testing.T) {
	err := &ProductError{ProductID: 9, Name: "Lamp", Err: ErrInsufficientStock}

	if !errors.Is(err, ErrInsufficientStock) || !errors.Is(err, ErrConflict) {
		t.Errorf("expected product error to wrap insufficient stock and conflict, got %v", err)
	}
	if err.Error() != "conflict: insufficient stock: Lamp (product 9)" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !errors.Is(ErrEmptyCart, ErrValidation) {
		t.Error("expected empty cart to be a validation error")
	}
	if !errors.Is(ErrOrderNotFound, ErrNotFound) {
		t.Error("expected order not found to be a not found error")
	}
}
