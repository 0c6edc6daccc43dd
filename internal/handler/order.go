package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/minishop/internal/domain/checkout"
	"github.com/xenking/minishop/internal/domain/money"
)

// ListOrders returns the order history, oldest first. Anonymous shoppers get
// 401.
func (h *Handler) ListOrders(w http.ResponseWriter, _ *http.Request) {
	if _, ok := h.accounts.Identity(); !ok {
		writeError(w, http.StatusUnauthorized, "login to view orders")
		return
	}
	orders := h.accounts.Orders()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, o := range orders {
				o.Encode(e)
			}
		})
	})
}

func decodeForm(f *checkout.Form) func(d *jx.Decoder, key string) error {
	fields := map[string]*string{
		checkout.FieldName:       &f.Name,
		checkout.FieldEmail:      &f.Email,
		checkout.FieldAddress:    &f.Address,
		checkout.FieldCity:       &f.City,
		checkout.FieldZipCode:    &f.ZipCode,
		checkout.FieldCardNumber: &f.CardNumber,
		checkout.FieldExpiryDate: &f.ExpiryDate,
		checkout.FieldCVV:        &f.CVV,
	}
	return func(d *jx.Decoder, key string) error {
		dst, ok := fields[key]
		if !ok {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return errors.Wrap(err, key)
		}
		*dst = v
		return nil
	}
}

// Checkout validates the submitted form and completes the purchase. The
// response carries the total charged and the recorded order, or null when
// the shopper is anonymous.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var f checkout.Form
	if err := decodeBody(w, r, decodeForm(&f)); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.checkout.Checkout(r.Context(), f)
	if err != nil {
		var vErr *checkout.ValidationError
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "cart is empty")
		case errors.As(err, &vErr):
			writeValidationError(w, vErr)
		default:
			internalError(r.Context(), w, "checkout", err)
		}
		return
	}
	h.checkouts.Add(r.Context(), 1, metric.WithAttributes(attribute.Bool("recorded", res.Order != nil)))

	status := http.StatusOK
	if res.Order != nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("total", func(e *jx.Encoder) { money.Encode(e, res.Total) })
			e.Field("order", func(e *jx.Encoder) {
				if res.Order == nil {
					e.Null()
					return
				}
				res.Order.Encode(e)
			})
		})
	})
}

// writeValidationError answers 422 with a message per invalid field.
func writeValidationError(w http.ResponseWriter, vErr *checkout.ValidationError) {
	status := http.StatusUnprocessableEntity
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			encodeError(e, status, "invalid checkout form")
			e.Field("fields", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					for _, name := range vErr.Names() {
						e.Field(name, func(e *jx.Encoder) { e.Str(vErr.Fields[name]) })
					}
				})
			})
		})
	})
}
