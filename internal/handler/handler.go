// Package handler serves the shop over HTTP: catalog, cart, mock
// authentication, order history and checkout.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/minishop/internal/domain/account"
	"github.com/xenking/minishop/internal/domain/cart"
	"github.com/xenking/minishop/internal/domain/checkout"
	"github.com/xenking/minishop/internal/domain/product"
)

// Cart is the cart ledger as seen by the HTTP layer.
type Cart interface {
	AddItem(p product.Product)
	RemoveItem(id int64)
	UpdateQuantity(id int64, quantity int)
	Clear()
	Lines() []cart.Line
	Line(id int64) (cart.Line, bool)
}

// Accounts is the account and order ledger as seen by the HTTP layer.
type Accounts interface {
	Login(ctx context.Context, email, password string) (bool, error)
	Register(ctx context.Context, name, email, password string) (bool, error)
	Logout(ctx context.Context) error
	Identity() (account.Identity, bool)
	Orders() []account.Order
}

// Checkout completes a purchase.
type Checkout interface {
	Checkout(ctx context.Context, f checkout.Form) (*checkout.Result, error)
}

var (
	_ Cart     = (*cart.Ledger)(nil)
	_ Accounts = (*account.Ledger)(nil)
	_ Checkout = (*checkout.Service)(nil)
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative product image paths. When empty,
	// paths are returned as stored.
	ImageBaseURL string
}

// Handler implements the /api routes.
type Handler struct {
	products product.Catalog
	cart     Cart
	accounts Accounts
	checkout Checkout

	imageBaseURL string

	logins        metric.Int64Counter
	registrations metric.Int64Counter
	checkouts     metric.Int64Counter
}

// New constructs a Handler. Counters are registered on mp.
func New(
	cfg Config,
	products product.Catalog,
	c Cart,
	accounts Accounts,
	co Checkout,
	mp metric.MeterProvider,
) (*Handler, error) {
	h := &Handler{
		products:     products,
		cart:         c,
		accounts:     accounts,
		checkout:     co,
		imageBaseURL: cfg.ImageBaseURL,
	}

	meter := mp.Meter("github.com/xenking/minishop/internal/handler")
	var err error
	if h.logins, err = meter.Int64Counter("minishop.auth.logins",
		metric.WithDescription("Login attempts by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "logins counter")
	}
	if h.registrations, err = meter.Int64Counter("minishop.auth.registrations",
		metric.WithDescription("Registration attempts by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "registrations counter")
	}
	if h.checkouts, err = meter.Int64Counter("minishop.checkouts",
		metric.WithDescription("Completed checkouts, by whether an order was recorded"),
	); err != nil {
		return nil, errors.Wrap(err, "checkouts counter")
	}
	return h, nil
}

// Mount registers the API routes on r under /api.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)

		r.Get("/cart", h.GetCart)
		r.Delete("/cart", h.ClearCart)
		r.Post("/cart/items", h.AddCartItem)
		r.Put("/cart/items/{id}", h.UpdateCartItem)
		r.Delete("/cart/items/{id}", h.RemoveCartItem)

		r.Post("/auth/login", h.Login)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/me", h.Me)

		r.Get("/orders", h.ListOrders)
		r.Post("/checkout", h.Checkout)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// RoutePattern returns the chi route template that matched r, or "" before
// routing.
func RoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
