package sales

import (
	"errors"
	"fmt"
)

// ErrEmptyCart is returned when a sale is submitted with no lines.
var ErrEmptyCart = errors.New("no items in cart")

// ErrInvalidSaleState is returned when a refund targets a sale that is
// not in the paid state.
var ErrInvalidSaleState = errors.New("only paid sales can be refunded")

// ErrSaleNotFound is returned when a sale lookup misses.
var ErrSaleNotFound = errors.New("sale not found")

// ErrBadDiscount is returned when the discount is negative or exceeds
// the cart subtotal.
var ErrBadDiscount = errors.New("discount must be between zero and the cart subtotal")

// ProductNotFoundError identifies a cart line whose product is missing
// or inactive.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found or inactive", e.ProductID)
}

// InsufficientStockError identifies a cart line asking for more units
// than the catalog holds.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}
