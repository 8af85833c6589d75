package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

type CartClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

type AuthHTTP struct {
	Svc          *identity.Service
	Carts        CartClearer
	SecureCookie bool
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "reason", "invalid body", "error", err)
		return badRequest("invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrValidation):
			l.Warn("login_error", "status", 400, "reason", "missing credentials", "error", err)
			return badRequest("email and password are required")
		case errors.Is(err, identity.ErrInvalidCredentials):
			l.Warn("login_error", "status", 401, "reason", "invalid credentials")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
		default:
			l.Error("login_error", "status", 500, "reason", "cannot log in", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot log in")
		}
	}

	c.SetCookie(tokens.CreateCookie(middleware.AccessCookie, res.AccessToken, "/", res.AccessExp, h.SecureCookie))

	l.Info("login_success", "user_id", res.User.ID)
	return c.JSON(http.StatusOK, transport.LoginResponse{
		UserID:  res.User.ID,
		Email:   res.User.Email,
		Role:    res.User.Role,
		IsOwner: res.User.Role == identity.RoleOwner,
	})
}

// LogOut ends the session: the access cookie goes and so does the cart.
func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	if sid := cartSession(c, false, h.SecureCookie); sid != "" && h.Carts != nil {
		if err := h.Carts.Clear(ctx, sid); err != nil {
			l.Warn("logout_cart_clear_error", "error", err)
		}
	}

	c.SetCookie(tokens.DeleteCookie(middleware.AccessCookie, "/", h.SecureCookie))
	c.SetCookie(tokens.DeleteCookie(CartCookie, "/", h.SecureCookie))

	l.Info("logout_success")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}
