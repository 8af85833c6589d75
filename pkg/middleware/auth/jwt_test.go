package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/pkg/tokens"
)

var secret = []byte("mw-secret")

func newCtx(t *testing.T, token string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: AccessCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func mustToken(t *testing.T, role string) string {
	t.Helper()
	tok, err := tokens.NewAccessToken(secret, "user-1", role, time.Now().Add(time.Minute))
	require.NoError(t, err)
	return tok
}

func ok(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestRequireAuth(t *testing.T) {
	m := NewJWTMiddleware(secret, false)

	c, _ := newCtx(t, "")
	err := m.RequireAuth(ok)(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)

	c, rec := newCtx(t, "garbage")
	err = m.RequireAuth(ok)(c)
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), AccessCookie+"=;")

	c, rec = newCtx(t, mustToken(t, "Customer"))
	require.NoError(t, m.RequireAuth(ok)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", UserID(c))
	assert.Equal(t, "Customer", Role(c))
}

func TestRequire_Validator(t *testing.T) {
	m := NewJWTMiddleware(secret, false)
	ownerOnly := m.Require(func(cl *tokens.AccessClaims) error {
		if cl.Role != "Owner" {
			return echo.NewHTTPError(http.StatusForbidden, "owner access required")
		}
		return nil
	})

	c, _ := newCtx(t, mustToken(t, "Customer"))
	err := ownerOnly(ok)(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusForbidden, he.Code)

	c, rec := newCtx(t, mustToken(t, "Owner"))
	require.NoError(t, ownerOnly(ok)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptional(t *testing.T) {
	m := NewJWTMiddleware(secret, false)
	mw := m.Optional(nil)

	c, rec := newCtx(t, "")
	require.NoError(t, mw(ok)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, UserID(c))

	c, _ = newCtx(t, "garbage")
	require.NoError(t, mw(ok)(c))
	assert.Empty(t, UserID(c))

	c, _ = newCtx(t, mustToken(t, "Customer"))
	require.NoError(t, mw(ok)(c))
	assert.Equal(t, "user-1", UserID(c))
}
