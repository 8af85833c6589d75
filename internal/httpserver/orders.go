package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/internal/orders"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type ActorResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (identity.Actor, error)
}

// resolveActor reloads the caller from the store, so a deleted account or a
// changed role is honoured before the token expires.
func resolveActor(c echo.Context, actors ActorResolver) (identity.Actor, error) {
	id, err := currentUserID(c)
	if err != nil {
		return identity.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "login required")
	}
	actor, err := actors.Resolve(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return identity.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
		}
		return identity.Actor{}, echo.NewHTTPError(http.StatusInternalServerError, "cannot load user")
	}
	return actor, nil
}

type OrderHTTP struct {
	Svc    *orders.Service
	Actors ActorResolver
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders.list")

	actor, err := resolveActor(c, h.Actors)
	if err != nil {
		return err
	}

	list, err := h.Svc.List(ctx, actor, strings.TrimSpace(c.QueryParam("email")))
	if err != nil {
		if errors.Is(err, orders.ErrForbidden) {
			return echo.NewHTTPError(http.StatusForbidden, "forbidden")
		}
		l.Error("list_orders_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}
	if list == nil {
		list = []orders.Summary{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders.get")

	actor, err := resolveActor(c, h.Actors)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return badRequest(err.Error())
	}

	d, err := h.Svc.Details(ctx, actor, id)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		case errors.Is(err, orders.ErrForbidden):
			l.Warn("get_order_error", "status", 403, "reason", "not the owner of the order", "order_id", id)
			return echo.NewHTTPError(http.StatusForbidden, "forbidden")
		default:
			l.Error("get_order_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot load order")
		}
	}
	return c.JSON(http.StatusOK, d)
}
