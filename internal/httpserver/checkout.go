package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, c *cart.Cart, actingUserID uuid.UUID) (*models.Order, error)
}

type CheckoutHTTP struct {
	Engine       OrderPlacer
	Carts        *cart.Service
	SecureCookie bool
}

// Checkout places an order from the session cart. An empty cart sends the
// caller back to /cart.
func (h *CheckoutHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout")

	userID, err := currentUserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "login required")
	}

	crt := &cart.Cart{}
	sid := cartSession(c, false, h.SecureCookie)
	if sid != "" {
		if crt, err = h.Carts.Get(ctx, sid); err != nil {
			l.Error("checkout_error", "status", 500, "reason", "cannot load cart", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot load cart")
		}
	}

	order, err := h.Engine.PlaceOrder(ctx, crt, userID)
	if err != nil {
		var ise *checkout.InsufficientStockError
		switch {
		case errors.As(err, &ise):
			l.Warn("checkout_error", "status", 409, "reason", "insufficient stock", "product_id", ise.ProductID, "available", ise.Available)
			return echo.NewHTTPError(http.StatusConflict, ise.Error())
		case errors.Is(err, checkout.ErrProductNotFound):
			l.Warn("checkout_error", "status", 404, "reason", "product not found", "error", err)
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, checkout.ErrForbidden):
			l.Warn("checkout_error", "status", 403, "reason", "forbidden", "error", err)
			return echo.NewHTTPError(http.StatusForbidden, "this account cannot place orders")
		default:
			l.Error("checkout_error", "status", 500, "reason", "cannot place order", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot place order")
		}
	}
	if order == nil {
		return c.Redirect(http.StatusSeeOther, "/cart")
	}

	// The order is committed; a stale cart left behind is only logged.
	if err := h.Carts.Clear(ctx, sid); err != nil {
		l.Error("checkout_cart_clear_error", "order_id", order.ID, "error", err)
	}

	l.Info("checkout_success", "order_id", order.ID)
	return c.JSON(http.StatusCreated, transport.NewOrderResponse(order))
}
