// Package checkout turns the cart into an order: it validates the checkout
// form, records an order for a logged-in shopper and empties the cart.
package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/minishop/internal/domain/account"
	"github.com/xenking/minishop/internal/domain/cart"
)

// ErrEmptyCart is returned when checking out a cart with no lines.
var ErrEmptyCart = errors.New("cart is empty")

// Cart is the part of the cart ledger checkout drains.
type Cart interface {
	Lines() []cart.Line
	Take() []cart.Line
	PutBack(lines []cart.Line)
}

// Orders is the part of the account ledger checkout records orders in.
type Orders interface {
	Identity() (account.Identity, bool)
	AddOrder(ctx context.Context, in account.OrderInput) (account.Order, error)
}

// Result describes a completed checkout.
type Result struct {
	// Order is nil when the shopper was not logged in.
	Order *account.Order
	Total decimal.Decimal
}

// Service performs checkout against a cart and an order ledger.
type Service struct {
	cart   Cart
	orders Orders
	tracer trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider traces checkouts with tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer("github.com/xenking/minishop/internal/domain/checkout")
	}
}

// NewService creates a checkout Service.
func NewService(c Cart, orders Orders, opts ...Option) *Service {
	s := &Service{
		cart:   c,
		orders: orders,
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout validates f, records a completed order when an identity is
// present, and clears the cart. Anonymous checkouts clear the cart without
// recording anything.
func (s *Service) Checkout(ctx context.Context, f Form) (_ *Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Checkout")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if len(s.cart.Lines()) == 0 {
		return nil, ErrEmptyCart
	}
	if err := Validate(f); err != nil {
		return nil, err
	}

	// A concurrent checkout may have drained the cart since the check above.
	lines := s.cart.Take()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	total := cart.Total(lines)
	span.SetAttributes(
		attribute.Int("checkout.lines", len(lines)),
		attribute.String("checkout.total", total.String()),
	)

	res := &Result{Total: total}
	if _, ok := s.orders.Identity(); ok {
		o, err := s.orders.AddOrder(ctx, account.OrderInput{
			Items:  orderItems(lines),
			Total:  total,
			Status: account.StatusCompleted,
		})
		if err != nil {
			s.cart.PutBack(lines)
			return nil, errors.Wrap(err, "add order")
		}
		res.Order = &o
		span.SetAttributes(attribute.String("checkout.order_id", o.ID))
	}

	return res, nil
}

func orderItems(lines []cart.Line) []account.OrderItem {
	items := make([]account.OrderItem, len(lines))
	for i, line := range lines {
		items[i] = account.OrderItem{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Price:     line.Product.Price,
			Quantity:  line.Quantity,
		}
	}
	return items
}
