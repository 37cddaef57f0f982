package application

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyOrder    = errors.New("order must contain at least one item")
	ErrOrderNotFound = errors.New("order not found")
)

// ProductNotFoundError aborts a placement whose request references a product
// that does not (or no longer does) exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// InsufficientStockError aborts a placement that requests more units than the
// product has in stock.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product: %s", e.Name)
}
