package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Products are
// owned by the catalog and never mutated after creation.
type Product struct {
	ID          int64
	Name        string
	Price       decimal.Decimal
	Image       string
	Category    string
	Description string
}

// Catalog defines read operations for the product catalog.
type Catalog interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
}
