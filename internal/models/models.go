package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"          json:"id"`
	Name      string          `gorm:"size:100;not null"                 json:"name"`
	Category  string          `gorm:"size:20;not null;index"            json:"category"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"       json:"price"`
	StockQty  int             `gorm:"not null;check:stock_qty >= 0"     json:"stock_qty"`
	CreatedAt time.Time       `gorm:"not null;index"                    json:"created_at"`
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"       json:"id"`
	Email        string    `gorm:"size:256;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null"                   json:"-"`
	Role         string    `gorm:"size:20;not null"           json:"role"`
	CreatedAt    time.Time `                                  json:"created_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Order struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"    json:"id"`
	UserID    uuid.UUID       `gorm:"type:uuid;index;not null"    json:"user_id"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	CreatedAt time.Time       `gorm:"not null;index"              json:"created_at"`
	Items     []OrderItem     `gorm:"foreignKey:OrderID"          json:"items,omitempty"`
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"     json:"id"`
	OrderID   uint            `gorm:"index;not null"               json:"order_id"`
	ProductID uint            `gorm:"index;not null"               json:"product_id"`
	Quantity  int             `gorm:"not null;check:quantity > 0"  json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"  json:"unit_price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Product{}, &User{}, &Order{}, &OrderItem{})
}
