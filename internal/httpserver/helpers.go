package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

// CartCookie carries the anonymous cart session id.
const CartCookie = "cartSession"

const cartCookieTTL = 30 * 24 * time.Hour

var errUnauthorized = errors.New("unauthorized")

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("id must be a positive integer")
	}
	return uint(id), nil
}

func currentUserID(c echo.Context) (uuid.UUID, error) {
	s := middleware.UserID(c)
	if s == "" {
		return uuid.Nil, errUnauthorized
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errUnauthorized
	}
	return id, nil
}

// cartSession returns the caller's cart session id. With create set, a new
// id is issued when the cookie is missing or malformed; otherwise "" is
// returned.
func cartSession(c echo.Context, create, secure bool) string {
	if ck, err := c.Cookie(CartCookie); err == nil {
		if _, err := uuid.Parse(ck.Value); err == nil {
			return ck.Value
		}
	}
	if !create {
		return ""
	}
	id := uuid.NewString()
	c.SetCookie(tokens.CreateCookie(CartCookie, id, "/", time.Now().Add(cartCookieTTL), secure))
	return id
}

func badRequest(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
