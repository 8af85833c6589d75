package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TopicProducts = "product_events"
	TopicOrders   = "order_events"

	ProductCreated = "product_created"
	ProductUpdated = "product_updated"
	ProductDeleted = "product_deleted"
	OrderPlaced    = "order_placed"
)

type ProductEvent struct {
	Type      string          `json:"type"`
	ProductID uint            `json:"productID"`
	Name      string          `json:"name,omitempty"`
	Category  string          `json:"category,omitempty"`
	Price     decimal.Decimal `json:"price"`
	StockQty  int             `json:"stock_qty"`
}

type OrderLine struct {
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderPlacedEvent struct {
	Type      string          `json:"type"`
	OrderID   uint            `json:"orderID"`
	UserID    uuid.UUID       `json:"userID"`
	Total     decimal.Decimal `json:"total"`
	Items     []OrderLine     `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}
