package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/orders"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
)

// maxAttempts is the first try plus one revalidation after a commit conflict.
const maxAttempts = 2

type ActorResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (identity.Actor, error)
}

type ProductReader interface {
	GetMany(ctx context.Context, ids []uint) ([]models.Product, error)
}

type OrderCommitter interface {
	Commit(ctx context.Context, order *models.Order) error
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any)
}

type Engine struct {
	Actors   ActorResolver
	Products ProductReader
	Orders   OrderCommitter

	Events  Publisher
	Metrics *metrics.CheckoutMetrics

	Now func() time.Time
}

// PlaceOrder turns the cart into an order for actingUserID.
//
// An empty cart is not an error: it returns (nil, nil) and touches nothing.
// On success the cart is cleared and the committed order returned. On any
// error the cart and all stored data are left exactly as they were.
func (e *Engine) PlaceOrder(ctx context.Context, c *cart.Cart, actingUserID uuid.UUID) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "checkout.place_order", "user_id", actingUserID)
	start := e.now()
	defer func() { e.Metrics.Observe(e.now().Sub(start)) }()

	actor, err := e.Actors.Resolve(ctx, actingUserID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			e.Metrics.Failed("forbidden")
			return nil, fmt.Errorf("%w: unknown user", ErrForbidden)
		}
		return nil, err
	}
	if !identity.CanCheckout(actor) {
		e.Metrics.Failed("forbidden")
		l.Warn("checkout_rejected", "reason", "role", "role", actor.Role)
		return nil, ErrForbidden
	}

	if c == nil || c.IsEmpty() {
		return nil, nil
	}

	var order *models.Order
	for attempt := 1; ; attempt++ {
		order, err = e.attempt(ctx, c, actor)
		if err == nil {
			break
		}

		var conflict *orders.StockConflictError
		if !errors.As(err, &conflict) {
			e.Metrics.Failed(failureReason(err))
			return nil, err
		}
		e.Metrics.Conflict()
		l.Info("checkout_conflict", "attempt", attempt, "product_id", conflict.ProductID, "available", conflict.Available)

		if attempt >= maxAttempts {
			e.Metrics.Failed("insufficient_stock")
			return nil, e.conflictError(c, conflict)
		}
	}

	c.Clear()
	e.Metrics.OrderPlaced()
	e.publish(ctx, order)
	l.Info("checkout_success", "order_id", order.ID, "total", order.Total.StringFixed(2))
	return order, nil
}

// attempt runs one read-validate-commit pass. It returns a
// *orders.StockConflictError when stock moved between the read and the commit.
func (e *Engine) attempt(ctx context.Context, c *cart.Cart, actor identity.Actor) (*models.Order, error) {
	products, err := e.Products.GetMany(ctx, c.ProductIDs())
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(c.Items))
	for _, line := range c.Items {
		p, ok := byID[line.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: line.ProductID, Name: line.Name}
		}
		if line.Quantity > p.StockQty {
			return nil, &InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.StockQty,
				Requested:   line.Quantity,
			}
		}
		total = total.Add(line.Subtotal())
		items = append(items, models.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	order := &models.Order{
		UserID:    actor.UserID,
		Total:     total,
		CreatedAt: e.now().UTC(),
		Items:     items,
	}
	if err := e.Orders.Commit(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// conflictError reports a conflict that survived the retry as plain
// insufficient stock for the product that lost the race.
func (e *Engine) conflictError(c *cart.Cart, conflict *orders.StockConflictError) error {
	name := ""
	if line, ok := c.Line(conflict.ProductID); ok {
		name = line.Name
	}
	return &InsufficientStockError{
		ProductID:   conflict.ProductID,
		ProductName: name,
		Available:   conflict.Available,
		Requested:   conflict.Requested,
	}
}

func (e *Engine) publish(ctx context.Context, order *models.Order) {
	if e.Events == nil {
		return
	}
	lines := make([]events.OrderLine, 0, len(order.Items))
	for _, it := range order.Items {
		lines = append(lines, events.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	e.Events.Publish(ctx, events.TopicOrders, strconv.FormatUint(uint64(order.ID), 10), events.OrderPlacedEvent{
		Type:      events.OrderPlaced,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Total:     order.Total,
		Items:     lines,
		CreatedAt: order.CreatedAt,
	})
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	default:
		return "internal"
	}
}
