package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/minishop/db"
	"github.com/xenking/minishop/internal/domain/account"
	"github.com/xenking/minishop/internal/domain/product"
	"github.com/xenking/minishop/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "path to products JSON file (defaults to the embedded demo catalog)")
	flag.Parse()

	lg := zap.Must(zap.NewProduction())
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, productsFile); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}

	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, productsFile string) error {
	products, err := readProducts(productsFile)
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := postgres.NewProductRepository(pool).Upsert(gctx, products); err != nil {
			return errors.Wrap(err, "seed products")
		}
		lg.Info("Upserted products", zap.Int("count", len(products)))
		return nil
	})
	g.Go(func() error {
		users := account.DemoUsers()
		if err := postgres.NewUserDirectory(pool).Seed(gctx, users); err != nil {
			return errors.Wrap(err, "seed users")
		}
		lg.Info("Seeded demo users", zap.Int("count", len(users)))
		return nil
	})
	return g.Wait()
}

func readProducts(path string) ([]product.Product, error) {
	data := db.Products
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read products file")
		}
		data = b
	}
	return product.ParseList(data)
}
