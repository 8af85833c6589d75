package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrForbidden     = errors.New("forbidden")
	ErrStockConflict = errors.New("stock conflict")
)

// StockConflictError reports that a product no longer had enough stock when
// the order was committed. Available is the stock seen inside the failed
// transaction; zero when the product is gone.
type StockConflictError struct {
	ProductID uint
	Available int
	Requested int
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("stock conflict on product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockConflictError) Is(target error) bool { return target == ErrStockConflict }

type GormRepo struct {
	DB *gorm.DB
}

// Commit persists order with its items and takes the ordered quantities out
// of stock, all in one transaction. Each decrement is conditional on enough
// stock remaining, so concurrent commits can never drive stock below zero; the
// first product that falls short aborts the whole transaction with a
// *StockConflictError. Products are updated in ascending id order so two
// commits touching the same rows lock them in the same order.
func (r *GormRepo) Commit(ctx context.Context, order *models.Order) error {
	want := make(map[uint]int, len(order.Items))
	for _, it := range order.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("order item for product %d: quantity must be > 0", it.ProductID)
		}
		want[it.ProductID] += it.Quantity
	}
	ids := make([]uint, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			qty := want[id]
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock_qty >= ?", id, qty).
				Update("stock_qty", gorm.Expr("stock_qty - ?", qty))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return conflict(tx, id, qty)
			}
		}

		return tx.Create(order).Error
	})
}

func conflict(tx *gorm.DB, id uint, requested int) error {
	var p models.Product
	err := tx.Select("id", "stock_qty").Where("id = ?", id).Take(&p).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &StockConflictError{ProductID: id, Requested: requested}
	case err != nil:
		return err
	}
	return &StockConflictError{ProductID: id, Available: p.StockQty, Requested: requested}
}
