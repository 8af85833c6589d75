package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type CartHTTP struct {
	Svc          *cart.Service
	SecureCookie bool
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()

	sid := cartSession(c, false, h.SecureCookie)
	if sid == "" {
		return c.JSON(http.StatusOK, transport.NewCartResponse(nil))
	}
	crt, err := h.Svc.Get(ctx, sid)
	if err != nil {
		logging.FromContext(ctx).Error("get_cart_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load cart")
	}
	return c.JSON(http.StatusOK, transport.NewCartResponse(crt))
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	var req transport.AddCartItemRequest
	if err := c.Bind(&req); err != nil || req.ProductID == 0 {
		l.Warn("add_to_cart_error", "status", 400, "reason", "invalid body", "error", err)
		return badRequest("invalid body")
	}

	sid := cartSession(c, true, h.SecureCookie)
	crt, err := h.Svc.Add(ctx, sid, req.ProductID, req.Quantity)
	if err != nil {
		if errors.Is(err, cart.ErrProductNotFound) {
			l.Warn("add_to_cart_error", "status", 404, "reason", "product not found", "product_id", req.ProductID)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		l.Error("add_to_cart_error", "status", 500, "reason", "cannot save cart", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save cart")
	}

	l.Info("add_to_cart_success", "product_id", req.ProductID)
	return c.JSON(http.StatusOK, transport.NewCartResponse(crt))
}

// UpdateItem sets a line's quantity. Zero or less removes the line.
func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_item")

	id, err := parseID(c)
	if err != nil {
		return badRequest(err.Error())
	}
	var req transport.UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_cart_error", "status", 400, "reason", "invalid body", "error", err)
		return badRequest("invalid body")
	}

	sid := cartSession(c, false, h.SecureCookie)
	if sid == "" {
		return c.JSON(http.StatusOK, transport.NewCartResponse(nil))
	}
	crt, err := h.Svc.UpdateQuantity(ctx, sid, id, req.Quantity)
	if err != nil {
		l.Error("update_cart_error", "status", 500, "reason", "cannot save cart", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save cart")
	}
	return c.JSON(http.StatusOK, transport.NewCartResponse(crt))
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return badRequest(err.Error())
	}
	sid := cartSession(c, false, h.SecureCookie)
	if sid == "" {
		return c.JSON(http.StatusOK, transport.NewCartResponse(nil))
	}
	crt, err := h.Svc.Remove(ctx, sid, id)
	if err != nil {
		logging.FromContext(ctx).Error("remove_from_cart_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save cart")
	}
	return c.JSON(http.StatusOK, transport.NewCartResponse(crt))
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()

	if sid := cartSession(c, false, h.SecureCookie); sid != "" {
		if err := h.Svc.Clear(ctx, sid); err != nil {
			logging.FromContext(ctx).Error("clear_cart_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot clear cart")
		}
	}
	return c.NoContent(http.StatusNoContent)
}
