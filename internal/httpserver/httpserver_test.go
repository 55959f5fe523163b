package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/db/dbtest"
	"github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/middleware/csrf"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

var secret = []byte("http-secret")

type testEnv struct {
	t        *testing.T
	e        *echo.Echo
	repo     *repo.GormRepo
	checkout *service.CheckoutService
	ready    error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	r := &repo.GormRepo{DB: dbtest.Open(t)}
	env := &testEnv{t: t, e: echo.New(), repo: r, checkout: &service.CheckoutService{Repo: r}}

	Register(env.e, &Deps{
		CheckoutHandler: &CheckoutHTTP{Svc: env.checkout},
		CartHandler:     &CartHTTP{Svc: &service.CartService{Repo: r}},
		CatalogHandler:  &CatalogHTTP{Svc: &service.CatalogService{Repo: r}},
		AddressHandler:  &AddressHTTP{Svc: &service.AddressService{Repo: r}},
		OrderHandler:    &OrderHTTP{Svc: &service.OrderService{Repo: r}},
		Auth:            auth.NewAutoRefreshMiddleware(secret, nil, false),
		CSRF:            csrf.Middleware(csrf.DefaultConfig()),
		Ready:           func(context.Context) error { return env.ready },
	})
	return env
}

func (env *testEnv) token(userID uuid.UUID, role string) string {
	env.t.Helper()
	tok, err := tokens.IssueAccessToken(secret, userID, role, time.Hour)
	require.NoError(env.t, err)
	return tok
}

func (env *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	env.t.Helper()
	var req *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(env.t, err)
		req = httptest.NewRequest(method, path, strings.NewReader(string(data)))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) product(name string, price int64, stock uint) *models.Product {
	env.t.Helper()
	p := &models.Product{Name: name, Price: decimal.NewFromInt(price), Stock: stock, Active: true}
	require.NoError(env.t, env.repo.CreateProduct(context.Background(), p))
	return p
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health/ready", "", nil).Code)

	env.ready = errors.New("db down")
	assert.Equal(t, http.StatusServiceUnavailable, env.do(http.MethodGet, "/health/ready", "", nil).Code)
}

func TestCheckout_FullFlow(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()
	tok := env.token(user, tokens.RoleUser)
	p := env.product("Headphones", 10000, 3)

	rec := env.do(http.MethodPost, "/cart", tok, map[string]any{"product_id": p.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/addresses", tok, map[string]any{
		"full_name": "Alan Turing", "line1": "Bletchley Park", "city": "Milton Keynes", "postal_code": "MK3 6EB",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	addr := decode[models.Address](t, rec)

	rec = env.do(http.MethodPost, "/checkout", tok, map[string]any{"shipping_address_id": addr.ID, "notes": "ring twice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	placed := decode[map[string]any](t, rec)
	assert.Equal(t, true, placed["success"])
	assert.Equal(t, "20000.00", placed["total_amount"])
	orderID, _ := placed["order_id"].(string)
	require.NotEmpty(t, orderID)

	rec = env.do(http.MethodGet, "/cart", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[map[string]any](t, rec)
	assert.Empty(t, cart["items"])

	rec = env.do(http.MethodGet, "/orders/"+orderID, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	order := decode[models.Order](t, rec)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "Alan Turing", order.Shipping.FullName)

	other := env.token(uuid.New(), tokens.RoleUser)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/orders/"+orderID, other, nil).Code)

	rec = env.do(http.MethodGet, "/orders", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string]any](t, rec)
	meta, _ := list["meta"].(map[string]any)
	assert.EqualValues(t, 1, meta["total"])
}

func TestCheckout_ValidationFailuresAre422(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()
	tok := env.token(user, tokens.RoleUser)

	rec := env.do(http.MethodPost, "/checkout", tok, map[string]any{"shipping_address_id": uuid.New()})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "EMPTY_CART", body["error_kind"])

	p := env.product("Scarf", 2500, 1)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/cart", tok, map[string]any{"product_id": p.ID, "quantity": 1}).Code)

	rec = env.do(http.MethodPost, "/checkout", tok, map[string]any{"shipping_address_id": uuid.New()})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "ADDRESS_NOT_FOUND", decode[map[string]any](t, rec)["error_kind"])

	addr := &models.Address{UserID: user, FullName: "A", Line1: "B", City: "C", PostalCode: "D"}
	require.NoError(t, env.repo.CreateAddress(context.Background(), addr))
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/cart", tok, map[string]any{"product_id": p.ID, "quantity": 1}).Code)

	rec = env.do(http.MethodPost, "/checkout", tok, map[string]any{"shipping_address_id": addr.ID})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body = decode[map[string]any](t, rec)
	assert.Equal(t, "PRODUCT_UNAVAILABLE", body["error_kind"])
	assert.Equal(t, p.ID.String(), body["product_id"])
	assert.Equal(t, false, body["retryable"])
}

type brokenClear struct {
	*repo.GormRepo
}

func (brokenClear) DeleteCartItems(context.Context, uuid.UUID, []uuid.UUID) error {
	return errors.New("connection reset by peer")
}

func TestCheckout_TransientFailureIs503(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()
	tok := env.token(user, tokens.RoleUser)
	p := env.product("Globe", 4000, 2)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/cart", tok, map[string]any{"product_id": p.ID, "quantity": 1}).Code)
	addr := &models.Address{UserID: user, FullName: "A", Line1: "B", City: "C", PostalCode: "D"}
	require.NoError(t, env.repo.CreateAddress(context.Background(), addr))

	env.checkout.Repo = brokenClear{env.repo}

	rec := env.do(http.MethodPost, "/checkout", tok, map[string]any{"shipping_address_id": addr.ID})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "TRANSIENT_STORAGE", body["error_kind"])
	assert.Equal(t, true, body["retryable"])

	got, err := env.repo.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Stock)
}

func TestCheckout_FormPostWithCookieNeedsCSRF(t *testing.T) {
	env := newTestEnv(t)
	user := uuid.New()
	tok := env.token(user, tokens.RoleUser)
	p := env.product("Poster", 1500, 5)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/cart", tok, map[string]any{"product_id": p.ID, "quantity": 1}).Code)
	addr := &models.Address{UserID: user, FullName: "A", Line1: "B", City: "C", PostalCode: "D"}
	require.NoError(t, env.repo.CreateAddress(context.Background(), addr))

	post := func(csrfToken string) *httptest.ResponseRecorder {
		form := url.Values{"shipping_address_id": {addr.ID.String()}, "csrf_token": {csrfToken}}
		req := httptest.NewRequest(http.MethodPost, "http://shop.test/checkout", strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		req.Header.Set("Origin", "http://shop.test")
		req.AddCookie(&http.Cookie{Name: tokens.AccessCookie, Value: tok})
		req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: "form-token"})
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, post("wrong").Code)

	rec := post("form-token")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCatalog_AdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(uuid.New(), tokens.RoleAdmin)
	user := env.token(uuid.New(), tokens.RoleUser)

	payload := map[string]any{"name": "Atlas", "description": "world maps", "price": "39.90", "stock": 7}
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/catalog/products", "", payload).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/catalog/products", user, payload).Code)

	rec := env.do(http.MethodPost, "/catalog/products", admin, payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Product](t, rec)

	rec = env.do(http.MethodGet, "/catalog/products/"+created.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/catalog/products/search?q=atl", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode[map[string]any](t, rec)
	assert.Len(t, found["data"], 1)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/catalog/products/search?q=", "", nil).Code)

	rec = env.do(http.MethodPatch, "/catalog/products/"+created.ID.String(), admin, map[string]any{"active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/catalog/products/"+created.ID.String(), "", nil).Code)

	rec = env.do(http.MethodGet, "/catalog/products?page=1&size=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[map[string]any](t, rec)
	meta, _ := listed["meta"].(map[string]any)
	assert.EqualValues(t, 0, meta["total"])
	assert.EqualValues(t, 5, meta["size"])

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/catalog/products/not-a-uuid", "", nil).Code)
}

func TestOrders_AdminStatusUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	p := env.product("Board game", 3500, 2)
	cart, err := env.repo.GetOrCreateCart(ctx, user)
	require.NoError(t, err)
	_, err = env.repo.UpsertCartItem(ctx, cart.ID, p.ID, 1)
	require.NoError(t, err)
	addr := &models.Address{UserID: user, FullName: "A", Line1: "B", City: "C", PostalCode: "D"}
	require.NoError(t, env.repo.CreateAddress(ctx, addr))
	placed, err := env.checkout.PlaceOrder(ctx, service.PlaceOrderInput{UserID: user, ShippingAddressID: addr.ID.String()})
	require.NoError(t, err)

	admin := env.token(uuid.New(), tokens.RoleAdmin)
	path := "/orders/" + placed.OrderID.String() + "/status"

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPatch, path, env.token(user, tokens.RoleUser), map[string]any{"status": "CONFIRMED"}).Code)
	assert.Equal(t, http.StatusConflict, env.do(http.MethodPatch, path, admin, map[string]any{"status": "DELIVERED"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPatch, path, admin, map[string]any{"status": "LOST"}).Code)

	rec := env.do(http.MethodPatch, path, admin, map[string]any{"status": "CONFIRMED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.OrderStatusConfirmed, decode[models.Order](t, rec).Status)
}

func TestCart_RemoveAndClear(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(uuid.New(), tokens.RoleUser)
	p := env.product("Socks", 500, 10)

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/cart", tok, map[string]any{"product_id": p.ID, "quantity": 2}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/cart", tok, map[string]any{"product_id": p.ID, "quantity": 0}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/cart", tok, map[string]any{"product_id": uuid.New(), "quantity": 1}).Code)

	rec := env.do(http.MethodDelete, "/cart/items/"+p.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	removed := decode[map[string]any](t, rec)
	assert.Equal(t, false, removed["deleted"])
	assert.EqualValues(t, 1, removed["quantity"])

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/cart", tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/cart/items/"+p.ID.String(), tok, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodDelete, "/cart/items/nope", tok, nil).Code)
}
