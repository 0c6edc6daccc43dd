package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/minishop/internal/domain/cart"
	"github.com/xenking/minishop/internal/domain/money"
	"github.com/xenking/minishop/internal/domain/product"
)

// GetCart returns the cart lines, the item count and the total.
func (h *Handler) GetCart(w http.ResponseWriter, _ *http.Request) {
	h.writeCart(w, http.StatusOK)
}

// AddCartItem adds one unit of {"productId":N} to the cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var (
		id  int64
		set bool
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "productId" {
			return d.Skip()
		}
		v, err := d.Int64()
		id, set = v, err == nil
		return err
	})
	if err != nil || !set {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		internalError(r.Context(), w, "get product", err)
		return
	}

	h.cart.AddItem(*p)
	h.writeCart(w, http.StatusOK)
}

// UpdateCartItem sets the quantity of a line from {"quantity":N}. A
// quantity of zero or less removes the line.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var (
		quantity int
		set      bool
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		v, err := d.Int()
		quantity, set = v, err == nil
		return err
	})
	if err != nil || !set {
		writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}

	if _, exists := h.cart.Line(id); !exists && quantity > 0 {
		writeError(w, http.StatusNotFound, "item not in cart")
		return
	}

	h.cart.UpdateQuantity(id, quantity)
	h.writeCart(w, http.StatusOK)
}

// RemoveCartItem drops the line for a product. Removing an absent line is
// not an error.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	h.cart.RemoveItem(id)
	h.writeCart(w, http.StatusOK)
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, _ *http.Request) {
	h.cart.Clear()
	h.writeCart(w, http.StatusOK)
}

func (h *Handler) writeCart(w http.ResponseWriter, status int) {
	lines := h.cart.Lines()
	count, total := cart.Count(lines), cart.Total(lines)

	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, l := range lines {
						e.Obj(func(e *jx.Encoder) {
							e.Field("product", h.present(l.Product).Encode)
							e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
							e.Field("subtotal", func(e *jx.Encoder) { money.Encode(e, l.Subtotal()) })
						})
					}
				})
			})
			e.Field("count", func(e *jx.Encoder) { e.Int(count) })
			e.Field("total", func(e *jx.Encoder) { money.Encode(e, total) })
		})
	})
}
