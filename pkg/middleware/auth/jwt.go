package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/pkg/tokens"
)

const (
	AccessCookie = "accessToken"

	ctxUserID = "user_id"
	ctxRole   = "role"
)

// ValidatorFunc decides whether the authenticated caller may proceed. A
// non-nil error is returned to the client as is.
type ValidatorFunc func(claims *tokens.AccessClaims) error

type JWTMiddleware struct {
	JWTSecret    []byte
	SecureCookie bool
}

func NewJWTMiddleware(secret []byte, secureCookie bool) *JWTMiddleware {
	return &JWTMiddleware{JWTSecret: secret, SecureCookie: secureCookie}
}

func (m *JWTMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *JWTMiddleware) Require(validator ValidatorFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return m.requireAuthWithValidator(next, validator)
	}
}

// Optional loads the caller's identity when a valid token is present and lets
// anonymous requests through. The validator, if any, only runs for
// authenticated callers.
func (m *JWTMiddleware) Optional(validator ValidatorFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ck, err := c.Cookie(AccessCookie)
			if err != nil || ck.Value == "" {
				return next(c)
			}
			claims, err := tokens.AccessClaimsFromToken(ck.Value, m.JWTSecret)
			if err != nil {
				c.SetCookie(tokens.DeleteCookie(AccessCookie, "/", m.SecureCookie))
				return next(c)
			}
			if validator != nil {
				if vErr := validator(claims); vErr != nil {
					return vErr
				}
			}
			setUserContext(c, claims)
			return next(c)
		}
	}
}

func (m *JWTMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ck, err := c.Cookie(AccessCookie)
		if err != nil || ck.Value == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := tokens.AccessClaimsFromToken(ck.Value, m.JWTSecret)
		if err != nil {
			c.SetCookie(tokens.DeleteCookie(AccessCookie, "/", m.SecureCookie))
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		if validator != nil {
			if vErr := validator(claims); vErr != nil {
				return vErr
			}
		}

		setUserContext(c, claims)
		return next(c)
	}
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	c.Set(ctxUserID, claims.Subject)
	c.Set(ctxRole, claims.Role)
}

// UserID returns the authenticated subject, or "" for anonymous callers.
func UserID(c echo.Context) string {
	v, _ := c.Get(ctxUserID).(string)
	return v
}

func Role(c echo.Context) string {
	v, _ := c.Get(ctxRole).(string)
	return v
}
