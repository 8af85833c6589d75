package httpserver

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/pkg/metrics"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

type Deps struct {
	AuthHandler     *AuthHTTP
	CatalogHandler  *CatalogHTTP
	CartHandler     *CartHTTP
	CheckoutHandler *CheckoutHTTP
	OrderHandler    *OrderHTTP
	UserHandler     *UserHTTP

	JWT *middleware.JWTMiddleware

	// Ready reports whether backing stores answer. Nil means always ready.
	Ready func(ctx context.Context) error
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

func actorOf(claims *tokens.AccessClaims) identity.Actor {
	id, _ := uuid.Parse(claims.Subject)
	return identity.Actor{UserID: id, Role: claims.Role}
}

func ownerOnly(claims *tokens.AccessClaims) error {
	if !identity.CanManageInventory(actorOf(claims)) {
		return echo.NewHTTPError(http.StatusForbidden, "owner only")
	}
	return nil
}

// canCheckout applies the same policy the checkout engine re-checks.
func canCheckout(claims *tokens.AccessClaims) error {
	if !identity.CanCheckout(actorOf(claims)) {
		return echo.NewHTTPError(http.StatusForbidden, "this account cannot place orders")
	}
	return nil
}

// notOwner keeps the owner account out of shopping flows.
func notOwner(claims *tokens.AccessClaims) error {
	if !identity.CanShop(actorOf(claims)) {
		return echo.NewHTTPError(http.StatusForbidden, "owner accounts cannot shop")
	}
	return nil
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.Gatherer)))
	}

	auth := e.Group("/auth")
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/logout", d.AuthHandler.LogOut)

	catalog := e.Group("/catalog")
	catalog.GET("/products", d.CatalogHandler.GetProducts)
	catalog.GET("/products/:id", d.CatalogHandler.GetProduct)
	catalog.GET("/categories", d.CatalogHandler.GetCategories)
	catalog.GET("/search", d.CatalogHandler.SearchProducts)

	cart := e.Group("/cart", d.JWT.Optional(notOwner))
	cart.GET("", d.CartHandler.GetCart)
	cart.DELETE("", d.CartHandler.ClearCart)
	cart.POST("/items", d.CartHandler.AddItem)
	cart.PATCH("/items/:id", d.CartHandler.UpdateItem)
	cart.DELETE("/items/:id", d.CartHandler.RemoveItem)

	e.POST("/checkout", d.CheckoutHandler.Checkout, d.JWT.Require(canCheckout))

	orders := e.Group("/orders", d.JWT.RequireAuth)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)

	admin := e.Group("/admin", d.JWT.Require(ownerOnly))
	admin.POST("/products", d.CatalogHandler.CreateProduct)
	admin.PATCH("/products/:id", d.CatalogHandler.PatchProduct)
	admin.DELETE("/products/:id", d.CatalogHandler.DeleteProduct)
	admin.GET("/users", d.UserHandler.ListUsers)
	admin.POST("/users", d.UserHandler.CreateUser)
	admin.DELETE("/users/:id", d.UserHandler.DeleteUser)
}
