package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Summary struct {
	ID        uint            `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Email     string          `json:"email"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

type ItemView struct {
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal" gorm:"-"`
}

type Details struct {
	Summary
	Items []ItemView `json:"items"`
}

// ListFilter narrows List. A nil UserID means every customer.
type ListFilter struct {
	UserID        *uuid.UUID
	EmailContains string
}

func (r *GormRepo) summaries(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Table("orders AS o").
		Select("o.id, o.user_id, o.total, o.created_at, COALESCE(u.email, '') AS email").
		Joins("LEFT JOIN users u ON u.id = o.user_id")
}

func (r *GormRepo) List(ctx context.Context, f ListFilter) ([]Summary, error) {
	q := r.summaries(ctx)
	if f.UserID != nil {
		q = q.Where("o.user_id = ?", *f.UserID)
	}
	if s := strings.TrimSpace(f.EmailContains); s != "" {
		q = q.Where("LOWER(u.email) LIKE ?", "%"+strings.ToLower(s)+"%")
	}

	out := make([]Summary, 0)
	if err := q.Order("o.created_at DESC").Order("o.id DESC").Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) Details(ctx context.Context, id uint) (*Details, error) {
	var d Details
	res := r.summaries(ctx).Where("o.id = ?", id).Limit(1).Scan(&d.Summary)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	items := make([]ItemView, 0)
	if err := r.DB.WithContext(ctx).
		Table("order_items AS i").
		Select("i.product_id, COALESCE(p.name, '') AS product_name, i.quantity, i.unit_price").
		Joins("LEFT JOIN products p ON p.id = i.product_id").
		Where("i.order_id = ?", id).
		Order("i.id ASC").
		Scan(&items).Error; err != nil {
		return nil, err
	}
	for n := range items {
		items[n].Subtotal = items[n].UnitPrice.Mul(decimal.NewFromInt(int64(items[n].Quantity)))
	}
	d.Items = items
	return &d, nil
}
