package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrForbidden         = errors.New("checkout not allowed for this account")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError names the first cart line that cannot be served.
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Not enough stock for '%s'. Available: %d.", e.ProductName, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type ProductNotFoundError struct {
	ProductID uint
	Name      string
}

func (e *ProductNotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("product '%s' is no longer available", e.Name)
	}
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool { return target == ErrProductNotFound }
