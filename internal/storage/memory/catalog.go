// Package memory provides in-process implementations of the domain ports.
package memory

import (
	"context"
	"slices"

	"github.com/xenking/minishop/internal/domain/product"
)

var _ product.Catalog = (*Catalog)(nil)

// Catalog is a fixed, read-only product list.
type Catalog struct {
	products []product.Product
	byID     map[int64]int
}

// NewCatalog returns a Catalog serving products in the given order.
func NewCatalog(products []product.Product) *Catalog {
	c := &Catalog{
		products: slices.Clone(products),
		byID:     make(map[int64]int, len(products)),
	}
	for i, p := range c.products {
		c.byID[p.ID] = i
	}
	return c
}

// List returns all products.
func (c *Catalog) List(_ context.Context) ([]product.Product, error) {
	return slices.Clone(c.products), nil
}

// GetByID returns the product with the given id.
func (c *Catalog) GetByID(_ context.Context, id int64) (*product.Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p := c.products[i]
	return &p, nil
}
