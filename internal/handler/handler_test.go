package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/minishop/db"
	"github.com/xenking/minishop/internal/domain/account"
	"github.com/xenking/minishop/internal/domain/cart"
	"github.com/xenking/minishop/internal/domain/checkout"
	"github.com/xenking/minishop/internal/domain/product"
	"github.com/xenking/minishop/internal/storage/memory"
)

type testEnv struct {
	router http.Handler
	cart   *cart.Ledger
	ledger *account.Ledger
	store  *memory.Store
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	products, err := product.ParseList(db.Products)
	require.NoError(t, err)

	store := memory.NewStore()
	c := cart.NewLedger()
	ledger := account.NewLedger(
		memory.NewDirectory(account.DemoUsers()...),
		account.WithStore(store, ""),
	)
	h, err := New(cfg, memory.NewCatalog(products), c, ledger, checkout.NewService(c, ledger), noop.NewMeterProvider())
	require.NoError(t, err)

	r := chi.NewRouter()
	h.Mount(r)
	return &testEnv{router: r, cart: c, ledger: ledger, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

type productBody struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

type cartBody struct {
	Items []struct {
		Product  productBody `json:"product"`
		Quantity int         `json:"quantity"`
		Subtotal float64     `json:"subtotal"`
	} `json:"items"`
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

type userBody struct {
	User struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

type orderBody struct {
	ID     string  `json:"id"`
	Date   string  `json:"date"`
	Total  float64 `json:"total"`
	Status string  `json:"status"`
	Items  []struct {
		ID       int64   `json:"id"`
		Name     string  `json:"name"`
		Price    float64 `json:"price"`
		Quantity int     `json:"quantity"`
	} `json:"items"`
}

type checkoutBody struct {
	Total float64   `json:"total"`
	Order orderBody `json:"order"`
}

const validCheckout = `{
	"name": "John Doe", "email": "john@example.com",
	"address": "1 Main St", "city": "Springfield", "zipCode": "12345",
	"cardNumber": "4242 4242 4242 4242", "expiryDate": "12/30", "cvv": "123"
}`

func TestProducts(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.do(t, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	list := decode[[]productBody](t, w)
	require.Len(t, list, 8)
	assert.Equal(t, "Wireless Headphones", list[0].Name)
	assert.Equal(t, "/images/headphones.jpg", list[0].Image)

	w = env.do(t, http.MethodGet, "/api/products/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 199.99, decode[productBody](t, w).Price, 1e-9)

	w = env.do(t, http.MethodGet, "/api/products/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errorBody{Code: 404, Message: "product not found"}, decode[errorBody](t, w))

	w = env.do(t, http.MethodGet, "/api/products/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProducts_ImageBaseURL(t *testing.T) {
	env := newTestEnv(t, Config{ImageBaseURL: "https://cdn.example.com/"})

	w := env.do(t, http.MethodGet, "/api/products/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://cdn.example.com/images/headphones.jpg", decode[productBody](t, w).Image)
}

func TestCart(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.do(t, http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	empty := decode[cartBody](t, w)
	assert.Empty(t, empty.Items)
	assert.Zero(t, empty.Total)

	env.do(t, http.MethodPost, "/api/cart/items", `{"productId":1}`)
	env.do(t, http.MethodPost, "/api/cart/items", `{"productId":3}`)
	w = env.do(t, http.MethodPost, "/api/cart/items", `{"productId":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[cartBody](t, w)
	require.Len(t, body.Items, 2)
	assert.Equal(t, int64(1), body.Items[0].Product.ID)
	assert.Equal(t, 2, body.Items[0].Quantity)
	assert.InDelta(t, 199.98, body.Items[0].Subtotal, 1e-9)
	assert.Equal(t, 3, body.Count)
	assert.InDelta(t, 249.97, body.Total, 1e-9)

	w = env.do(t, http.MethodPut, "/api/cart/items/3", `{"quantity":4}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 6, decode[cartBody](t, w).Count)

	w = env.do(t, http.MethodPut, "/api/cart/items/1", `{"quantity":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode[cartBody](t, w)
	require.Len(t, body.Items, 1)
	assert.Equal(t, int64(3), body.Items[0].Product.ID)

	w = env.do(t, http.MethodDelete, "/api/cart/items/3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[cartBody](t, w).Items)

	env.do(t, http.MethodPost, "/api/cart/items", `{"productId":5}`)
	w = env.do(t, http.MethodDelete, "/api/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, env.cart.Len())
}

func TestCart_Errors(t *testing.T) {
	env := newTestEnv(t, Config{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "unknown product", method: http.MethodPost, path: "/api/cart/items", body: `{"productId":42}`, status: http.StatusNotFound},
		{name: "missing product id", method: http.MethodPost, path: "/api/cart/items", body: `{}`, status: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPost, path: "/api/cart/items", body: `{"productId":`, status: http.StatusBadRequest},
		{name: "trailing bytes", method: http.MethodPost, path: "/api/cart/items", body: `{"productId":1}xyz`, status: http.StatusBadRequest},
		{name: "second object", method: http.MethodPost, path: "/api/cart/items", body: `{"productId":1}{"productId":2}`, status: http.StatusBadRequest},
		{name: "update absent line", method: http.MethodPut, path: "/api/cart/items/2", body: `{"quantity":3}`, status: http.StatusNotFound},
		{name: "update bad id", method: http.MethodPut, path: "/api/cart/items/x", body: `{"quantity":3}`, status: http.StatusBadRequest},
		{name: "update missing quantity", method: http.MethodPut, path: "/api/cart/items/2", body: `{"qty":3}`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.status, decode[errorBody](t, w).Code)
		})
	}

	assert.Zero(t, env.cart.Len(), "rejected bodies must not change the cart")

	// Zero quantity on an absent line is a no-op, not an error.
	w := env.do(t, http.MethodPut, "/api/cart/items/2", `{"quantity":0}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/cart/items", "{\"productId\":1}\n  ")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.do(t, http.MethodGet, "/api/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/login", `{"email":"john@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email or password", decode[errorBody](t, w).Message)

	w = env.do(t, http.MethodPost, "/api/auth/login", `{"email":"john@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "John Doe", decode[userBody](t, w).User.Name)

	w = env.do(t, http.MethodGet, "/api/auth/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "john@example.com", decode[userBody](t, w).User.Email)

	w = env.do(t, http.MethodPost, "/api/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, env.ledger.LoggedIn())

	data, err := env.store.Load(t.Context(), account.DefaultStorageKey)
	require.NoError(t, err)
	snap, err := account.UnmarshalSnapshot(data)
	require.NoError(t, err)
	assert.False(t, snap.LoggedIn)
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.do(t, http.MethodPost, "/api/auth/register", `{"name":"Jane","email":"jane@example.com","password":"x"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.ledger.LoggedIn())

	w = env.do(t, http.MethodPost, "/api/auth/register", `{"email":"bob@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/register", `{"name":"Bob","email":"bob@example.com","password":"secret"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	user := decode[userBody](t, w).User
	assert.Equal(t, "Bob", user.Name)
	assert.NotEmpty(t, user.ID)

	env.do(t, http.MethodPost, "/api/auth/logout", "")
	w = env.do(t, http.MethodPost, "/api/auth/login", `{"email":"bob@example.com","password":"secret"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckout(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.do(t, http.MethodPost, "/api/checkout", validCheckout)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cart is empty", decode[errorBody](t, w).Message)

	env.do(t, http.MethodPost, "/api/cart/items", `{"productId":4}`)

	w = env.do(t, http.MethodPost, "/api/checkout", `{"name":"","email":"nope","cardNumber":"1234","cvv":"12"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	vErr := decode[errorBody](t, w)
	assert.Equal(t, 422, vErr.Code)
	assert.Equal(t, "Name is required", vErr.Fields["name"])
	assert.Equal(t, "Email is invalid", vErr.Fields["email"])
	assert.Equal(t, "Card number must be 16 digits", vErr.Fields["cardNumber"])
	assert.Equal(t, "CVV must be 3 digits", vErr.Fields["cvv"])
	assert.Equal(t, 1, env.cart.Len(), "invalid form keeps the cart")

	// Anonymous checkout clears the cart without recording an order.
	w = env.do(t, http.MethodPost, "/api/checkout", validCheckout)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":14.99,"order":null}`, w.Body.String())
	assert.Zero(t, env.cart.Len())
	assert.Empty(t, env.ledger.Orders())

	env.do(t, http.MethodPost, "/api/auth/login", `{"email":"jane@example.com","password":"password123"}`)
	env.do(t, http.MethodPost, "/api/cart/items", `{"productId":4}`)
	env.do(t, http.MethodPost, "/api/cart/items", `{"productId":4}`)
	env.do(t, http.MethodPost, "/api/cart/items", `{"productId":1}`)

	w = env.do(t, http.MethodPost, "/api/checkout", validCheckout)
	require.Equal(t, http.StatusCreated, w.Code)
	res := decode[checkoutBody](t, w)
	assert.InDelta(t, 129.97, res.Total, 1e-9)
	assert.Equal(t, "completed", res.Order.Status)
	require.Len(t, res.Order.Items, 2)
	assert.Equal(t, 2, res.Order.Items[0].Quantity)
	assert.Zero(t, env.cart.Len())

	w = env.do(t, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	orders := decode[[]orderBody](t, w)
	require.Len(t, orders, 1)
	assert.Equal(t, res.Order.ID, orders[0].ID)
}

func TestOrders_RequireLogin(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.do(t, http.MethodGet, "/api/orders", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNotFoundAndMethod(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.do(t, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 404, decode[errorBody](t, w).Code)

	w = env.do(t, http.MethodPatch, "/api/cart", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRoutePattern(t *testing.T) {
	var pattern string
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			pattern = RoutePattern(req)
		})
	})
	r.Get("/api/cart/items/{id}", func(http.ResponseWriter, *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/cart/items/7", nil))
	assert.Equal(t, "/api/cart/items/{id}", pattern)

	assert.Empty(t, RoutePattern(httptest.NewRequest(http.MethodGet, "/", nil)))
}
