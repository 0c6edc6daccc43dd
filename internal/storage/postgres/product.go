package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/minishop/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, price, image, category, description
		FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, name, price, image, category, description
		FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, price, image, category, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			image = EXCLUDED.image,
			category = EXCLUDED.category,
			description = EXCLUDED.description`
)

var _ product.Catalog = (*ProductRepository)(nil)

// ProductRepository implements product.Catalog backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products ordered by id.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %d", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	return &p, nil
}

// Upsert inserts products or updates the ones already present in a single
// batch.
func (r *ProductRepository) Upsert(ctx context.Context, products []product.Product) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(upsertProductSQL, p.ID, p.Name, p.Price, p.Image, p.Category, p.Description)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert products")
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Image, &p.Category, &p.Description)
	return p, err
}
