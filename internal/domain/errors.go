package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation                = errors.New("validation failed")
	ErrNotFound                  = errors.New("not found")
	ErrConflict                  = errors.New("conflict")
	ErrUnauthorized              = errors.New("unauthorized")
	ErrForbidden                 = errors.New("forbidden")
	ErrPaymentGateway            = errors.New("payment gateway error")
	ErrPaymentServiceUnavailable = errors.New("payment service not configured")
	ErrInvalidSignature          = errors.New("invalid webhook signature")
)

var (
	ErrEmptyCart          = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrProductUnavailable = fmt.Errorf("%w: product is no longer available", ErrConflict)
	ErrInsufficientStock  = fmt.Errorf("%w: insufficient stock", ErrConflict)
	ErrOrderNotFound      = fmt.Errorf("%w: order", ErrNotFound)
	ErrProductNotFound    = fmt.Errorf("%w: product", ErrNotFound)
	ErrNoPaymentIntent    = fmt.Errorf("%w: order has no payment intent", ErrValidation)
	ErrInvalidOrderState  = fmt.Errorf("%w: invalid order state", ErrConflict)
	ErrDuplicateRequest   = fmt.Errorf("%w: request already in progress", ErrConflict)
)

// ProductError names the product that failed checkout validation.
type ProductError struct {
	ProductID int64
	Name      string
	Err       error
}

func (e *ProductError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%v: %s (product %d)", e.Err, e.Name, e.ProductID)
	}
	return fmt.Sprintf("%v: product %d", e.Err, e.ProductID)
}

func (e *ProductError) Unwrap() error {
	return e.Err
}
