package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/orders"
	"github.com/Skotchmaster/storefront/internal/seed"
	"github.com/Skotchmaster/storefront/internal/testdb"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/metrics"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
)

type testEnv struct {
	E  *echo.Echo
	DB *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testdb.Open(t)
	secret := []byte("test-secret")

	users := &identity.Service{Repo: &identity.GormRepo{DB: db}, JWTSecret: secret, TokenTTL: time.Hour}
	products := &catalog.Service{Repo: &catalog.GormRepo{DB: db}}
	require.NoError(t, seed.Run(context.Background(), users, products))

	carts := &cart.Service{Store: cart.NewMemoryStore(time.Hour), Products: products}
	orderRepo := &orders.GormRepo{DB: db}
	reg := prometheus.NewRegistry()

	e := echo.New()
	Register(e, &Deps{
		AuthHandler:    &AuthHTTP{Svc: users, Carts: carts},
		CatalogHandler: &CatalogHTTP{Svc: products},
		CartHandler:    &CartHTTP{Svc: carts},
		CheckoutHandler: &CheckoutHTTP{
			Engine: &checkout.Engine{
				Actors:   users,
				Products: products,
				Orders:   orderRepo,
				Metrics:  metrics.NewCheckoutMetrics(reg),
			},
			Carts: carts,
		},
		OrderHandler: &OrderHTTP{Svc: &orders.Service{Repo: orderRepo}, Actors: users},
		UserHandler:  &UserHTTP{Svc: users},
		JWT:          middleware.NewJWTMiddleware(secret, false),
		Gatherer:     reg,
	})
	return &testEnv{E: e, DB: db}
}

// client keeps cookies between requests the way a browser would.
type client struct {
	env     *testEnv
	cookies map[string]*http.Cookie
}

func (env *testEnv) client() *client {
	return &client{env: env, cookies: map[string]*http.Cookie{}}
}

func (cl *client) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cl.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	cl.env.E.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(cl.cookies, ck.Name)
			continue
		}
		cl.cookies[ck.Name] = ck
	}
	return rec
}

func (cl *client) login(t *testing.T, email string) *client {
	t.Helper()
	rec := cl.do(t, http.MethodPost, "/auth/login", transport.LoginRequest{Email: email, Password: seed.DemoPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, cl.cookies, middleware.AccessCookie)
	return cl
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (env *testEnv) productByName(t *testing.T, name string) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, env.DB.Where("name = ?", name).First(&p).Error)
	return p
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	cl := env.client()

	assert.Equal(t, http.StatusOK, cl.do(t, http.MethodGet, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, cl.do(t, http.MethodGet, "/health/ready", nil).Code)

	rec := cl.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_checkout_duration_seconds")
}

func TestCatalog_Public(t *testing.T) {
	env := newTestEnv(t)
	cl := env.client()

	rec := cl.do(t, http.MethodGet, "/catalog/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Product](t, rec), 3)

	rec = cl.do(t, http.MethodGet, "/catalog/products?category=Book", nil)
	books := decode[[]models.Product](t, rec)
	require.Len(t, books, 1)
	assert.Equal(t, "Clean Code Book", books[0].Name)

	rec = cl.do(t, http.MethodGet, "/catalog/products?q=lego", nil)
	assert.Len(t, decode[[]models.Product](t, rec), 1)

	lego := env.productByName(t, "Lego Starter Toy")
	rec = cl.do(t, http.MethodGet, "/catalog/products/"+itoa(lego.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "39.99", decode[models.Product](t, rec).Price.StringFixed(2))

	assert.Equal(t, http.StatusNotFound, cl.do(t, http.MethodGet, "/catalog/products/9999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, cl.do(t, http.MethodGet, "/catalog/products/abc", nil).Code)

	rec = cl.do(t, http.MethodGet, "/catalog/categories", nil)
	assert.Equal(t, []string{"Book", "Game", "Toy"}, decode[[]string](t, rec))

	rec = cl.do(t, http.MethodGet, "/catalog/search?q=monopoly&size=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[transport.SearchResponse](t, rec)
	assert.EqualValues(t, 1, res.Meta.Total)
	assert.Equal(t, 5, res.Meta.Size)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Monopoly Game", res.Data[0].Name)

	raw := decode[map[string]json.RawMessage](t, rec)
	assert.Contains(t, raw, "data")
	assert.Contains(t, raw, "meta")
	assert.NotContains(t, raw, "products")
}

func TestCart_AnonymousFlow(t *testing.T) {
	env := newTestEnv(t)
	cl := env.client()
	game := env.productByName(t, "Monopoly Game")
	book := env.productByName(t, "Clean Code Book")

	rec := cl.do(t, http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[transport.CartResponse](t, rec).Items)
	assert.NotContains(t, cl.cookies, CartCookie, "reading an empty cart does not open a session")

	rec = cl.do(t, http.MethodPost, "/cart/items", transport.AddCartItemRequest{ProductID: game.ID, Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, cl.cookies, CartCookie)

	cl.do(t, http.MethodPost, "/cart/items", transport.AddCartItemRequest{ProductID: game.ID})
	rec = cl.do(t, http.MethodPost, "/cart/items", transport.AddCartItemRequest{ProductID: book.ID, Quantity: 1})
	body := decode[transport.CartResponse](t, rec)
	require.Len(t, body.Items, 2)
	assert.Equal(t, 3, body.Items[0].Quantity, "quantity 0 is treated as 1")
	assert.Equal(t, 4, body.Count)
	assert.Equal(t, "154.99", body.Total.StringFixed(2))

	rec = cl.do(t, http.MethodPatch, "/cart/items/"+itoa(game.ID), transport.UpdateCartItemRequest{Quantity: 0})
	body = decode[transport.CartResponse](t, rec)
	require.Len(t, body.Items, 1)
	assert.Equal(t, book.ID, body.Items[0].ProductID)

	rec = cl.do(t, http.MethodPost, "/cart/items", transport.AddCartItemRequest{ProductID: 9999, Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = cl.do(t, http.MethodDelete, "/cart/items/"+itoa(book.ID), nil)
	assert.Empty(t, decode[transport.CartResponse](t, rec).Items)

	cl.do(t, http.MethodPost, "/cart/items", transport.AddCartItemRequest{ProductID: book.ID, Quantity: 1})
	assert.Equal(t, http.StatusNoContent, cl.do(t, http.MethodDelete, "/cart", nil).Code)
	assert.Empty(t, decode[transport.CartResponse](t, cl.do(t, http.MethodGet, "/cart", nil)).Items)
}

func TestCheckout_CustomerPlacesOrder(t *testing.T) {
	env := newTestEnv(t)
	cl := env.client()
	game := env.productByName(t, "Monopoly Game")

	cl.do(t, http.MethodPost, "/cart/items", transport.AddCartItemRequest{ProductID: game.ID, Quantity: 2})
	assert.Equal(t, http.StatusUnauthorized, cl.do(t, http.MethodPost, "/checkout", nil).Code)

	cl.login(t, seed.DemoCustomerEmail)
	rec := cl.do(t, http.MethodPost, "/checkout", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	order := decode[transport.OrderResponse](t, rec)
	assert.NotZero(t, order.ID)
	assert.True(t, decimal.NewFromInt(70).Equal(order.Total))
	require.Len(t, order.Items, 1)
	assert.Equal(t, 18, env.productByName(t, "Monopoly Game").StockQty)

	assert.Empty(t, decode[transport.CartResponse](t, cl.do(t, http.MethodGet, "/cart", nil)).Items)

	rec = cl.do(t, http.MethodPost, "/checkout", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/cart", rec.Header().Get(echo.HeaderLocation))

	rec = cl.do(t, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]orders.Summary](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, order.ID, list[0].ID)

	rec = cl.do(t, http.MethodGet, "/orders/"+itoa(order.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	details := decode[orders.Details](t, rec)
	require.Len(t, details.Items, 1)
	assert.Equal(t, "Monopoly Game", details.Items[0].ProductName)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	cl := env.client().login(t, seed.DemoCustomerEmail)
	book := env.productByName(t, "Clean Code Book")

	cl.do(t, http.MethodPost, "/cart/items", transport.AddCartItemRequest{ProductID: book.ID, Quantity: 11})
	rec := cl.do(t, http.MethodPost, "/checkout", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not enough stock for 'Clean Code Book'. Available: 10.")

	assert.Equal(t, 10, env.productByName(t, "Clean Code Book").StockQty)
	assert.Len(t, decode[transport.CartResponse](t, cl.do(t, http.MethodGet, "/cart", nil)).Items, 1)
}

func TestCheckout_ProductRemovedAfterAdd(t *testing.T) {
	env := newTestEnv(t)
	cl := env.client().login(t, seed.DemoCustomerEmail)
	toy := env.productByName(t, "Lego Starter Toy")

	cl.do(t, http.MethodPost, "/cart/items", transport.AddCartItemRequest{ProductID: toy.ID, Quantity: 1})
	require.NoError(t, env.DB.Delete(&models.Product{}, toy.ID).Error)

	assert.Equal(t, http.StatusNotFound, cl.do(t, http.MethodPost, "/checkout", nil).Code)
}

func TestOwner_CannotShop(t *testing.T) {
	env := newTestEnv(t)
	owner := env.client().login(t, identity.DemoOwnerEmail)
	game := env.productByName(t, "Monopoly Game")

	assert.Equal(t, http.StatusForbidden, owner.do(t, http.MethodGet, "/cart", nil).Code)
	assert.Equal(t, http.StatusForbidden,
		owner.do(t, http.MethodPost, "/cart/items", transport.AddCartItemRequest{ProductID: game.ID, Quantity: 1}).Code)
	assert.Equal(t, http.StatusForbidden, owner.do(t, http.MethodPost, "/checkout", nil).Code)
	assert.Equal(t, 20, env.productByName(t, "Monopoly Game").StockQty)
}

func TestOrders_Visibility(t *testing.T) {
	env := newTestEnv(t)
	game := env.productByName(t, "Monopoly Game")

	customer := env.client().login(t, seed.DemoCustomerEmail)
	customer.do(t, http.MethodPost, "/cart/items", transport.AddCartItemRequest{ProductID: game.ID, Quantity: 1})
	rec := customer.do(t, http.MethodPost, "/checkout", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := decode[transport.OrderResponse](t, rec).ID

	owner := env.client().login(t, identity.DemoOwnerEmail)
	rec = owner.do(t, http.MethodPost, "/admin/users", transport.CreateUserRequest{Email: "other@example.com", Password: "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = owner.do(t, http.MethodGet, "/orders?email=easygames", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orders.Summary](t, rec), 1)
	assert.Equal(t, http.StatusOK, owner.do(t, http.MethodGet, "/orders/"+itoa(orderID), nil).Code)

	other := env.client()
	rec = other.do(t, http.MethodPost, "/auth/login", transport.LoginRequest{Email: "other@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]orders.Summary](t, other.do(t, http.MethodGet, "/orders", nil)))
	assert.Equal(t, http.StatusForbidden, other.do(t, http.MethodGet, "/orders/"+itoa(orderID), nil).Code)
	assert.Equal(t, http.StatusNotFound, other.do(t, http.MethodGet, "/orders/9999", nil).Code)

	assert.Equal(t, http.StatusUnauthorized, env.client().do(t, http.MethodGet, "/orders", nil).Code)
}

func TestAdmin_Products(t *testing.T) {
	env := newTestEnv(t)
	customer := env.client().login(t, seed.DemoCustomerEmail)
	owner := env.client().login(t, identity.DemoOwnerEmail)

	req := transport.CreateProductRequest{Name: "Catan", Category: "Game", Price: decimal.RequireFromString("44.50"), StockQty: 4}
	assert.Equal(t, http.StatusForbidden, customer.do(t, http.MethodPost, "/admin/products", req).Code)
	assert.Equal(t, http.StatusUnauthorized, env.client().do(t, http.MethodPost, "/admin/products", req).Code)

	rec := owner.do(t, http.MethodPost, "/admin/products", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Product](t, rec)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	bad := req
	bad.Category = "Furniture"
	assert.Equal(t, http.StatusBadRequest, owner.do(t, http.MethodPost, "/admin/products", bad).Code)

	stock := 9
	rec = owner.do(t, http.MethodPatch, "/admin/products/"+itoa(created.ID), transport.PatchProductRequest{StockQty: &stock})
	require.Equal(t, http.StatusOK, rec.Code)
	patched := decode[models.Product](t, rec)
	assert.Equal(t, 9, patched.StockQty)
	assert.Equal(t, "Catan", patched.Name)

	negative := -1
	assert.Equal(t, http.StatusBadRequest,
		owner.do(t, http.MethodPatch, "/admin/products/"+itoa(created.ID), transport.PatchProductRequest{StockQty: &negative}).Code)
	assert.Equal(t, http.StatusNotFound,
		owner.do(t, http.MethodPatch, "/admin/products/9999", transport.PatchProductRequest{StockQty: &stock}).Code)

	assert.Equal(t, http.StatusNoContent, owner.do(t, http.MethodDelete, "/admin/products/"+itoa(created.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, owner.do(t, http.MethodDelete, "/admin/products/"+itoa(created.ID), nil).Code)
}

func TestAdmin_Users(t *testing.T) {
	env := newTestEnv(t)
	owner := env.client().login(t, identity.DemoOwnerEmail)

	rec := owner.do(t, http.MethodGet, "/admin/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]models.User](t, rec)
	require.Len(t, users, 2)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = owner.do(t, http.MethodPost, "/admin/users", transport.CreateUserRequest{Email: "new@example.com", Password: "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.User](t, rec)
	assert.Equal(t, identity.RoleCustomer, created.Role)

	assert.Equal(t, http.StatusConflict,
		owner.do(t, http.MethodPost, "/admin/users", transport.CreateUserRequest{Email: "NEW@example.com", Password: "secret1"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		owner.do(t, http.MethodPost, "/admin/users", transport.CreateUserRequest{Email: "nope", Password: "secret1"}).Code)

	var ownerID string
	for _, u := range users {
		if u.Email == identity.DemoOwnerEmail {
			ownerID = u.ID.String()
		}
	}
	assert.Equal(t, http.StatusForbidden, owner.do(t, http.MethodDelete, "/admin/users/"+ownerID, nil).Code)
	assert.Equal(t, http.StatusNoContent, owner.do(t, http.MethodDelete, "/admin/users/"+created.ID.String(), nil).Code)
	assert.Equal(t, http.StatusNotFound, owner.do(t, http.MethodDelete, "/admin/users/"+created.ID.String(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, owner.do(t, http.MethodDelete, "/admin/users/not-a-uuid", nil).Code)
}

func TestAuth_LoginAndLogout(t *testing.T) {
	env := newTestEnv(t)
	cl := env.client()

	rec := cl.do(t, http.MethodPost, "/auth/login", transport.LoginRequest{Email: seed.DemoCustomerEmail, Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = cl.do(t, http.MethodPost, "/auth/login", transport.LoginRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = cl.do(t, http.MethodPost, "/auth/login", transport.LoginRequest{Email: identity.DemoOwnerEmail, Password: seed.DemoPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[transport.LoginResponse](t, rec).IsOwner)

	rec = cl.do(t, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, cl.cookies, middleware.AccessCookie)
	assert.Equal(t, http.StatusUnauthorized, cl.do(t, http.MethodGet, "/orders", nil).Code)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
