package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/minishop/internal/domain/product"
)

// ListProducts returns every product in the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		internalError(r.Context(), w, "list products", err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, p := range products {
				h.present(p).Encode(e)
			}
		})
	})
}

// GetProduct returns a single product by id.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
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

	writeJSON(w, http.StatusOK, h.present(*p).Encode)
}

// present prefixes relative image paths with the configured base URL.
func (h *Handler) present(p product.Product) product.Product {
	if h.imageBaseURL == "" || p.Image == "" || strings.Contains(p.Image, "://") {
		return p
	}
	p.Image = strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(p.Image, "/")
	return p
}
