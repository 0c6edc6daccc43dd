// Command orders-export dumps the order history of saved account snapshots
// as gzip-compressed newline-delimited JSON, one file per snapshot key.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/minishop/internal/app"
	"github.com/xenking/minishop/internal/domain/account"
)

const maxParallel = 4

func main() {
	var (
		outDir string
		keys   string
	)

	flag.StringVar(&outDir, "out", "export", "directory to write <key>.orders.ndjson.gz files to")
	flag.StringVar(&keys, "keys", "", "comma-separated snapshot keys (defaults to SHOP_STORAGE_KEY)")
	flag.Parse()

	lg := zap.Must(zap.NewProduction())
	defer func() { _ = lg.Sync() }()

	cfg, err := app.LoadEnvConfig()
	if err != nil {
		lg.Fatal("Load config", zap.Error(err))
	}
	if keys == "" {
		keys = cfg.Storage.Key
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg, outDir, strings.Split(keys, ",")); err != nil {
		lg.Fatal("Export failed", zap.Error(err))
	}

	lg.Info("Export completed")
}

func run(ctx context.Context, lg *zap.Logger, cfg *app.Config, outDir string, keys []string) error {
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return errors.Wrap(err, "create output dir")
	}

	store, closeStore, err := app.OpenSnapshotStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		g.Go(func() error {
			n, err := exportKey(gctx, store, key, filepath.Join(outDir, key+".orders.ndjson.gz"))
			if err != nil {
				return errors.Wrapf(err, "export %q", key)
			}
			lg.Info("Exported orders", zap.String("key", key), zap.Int("orders", n))
			return nil
		})
	}
	return g.Wait()
}

// exportKey writes the orders saved under key to path. A key with no snapshot
// produces an empty file.
func exportKey(ctx context.Context, store account.Store, key, path string) (int, error) {
	var orders []account.Order
	data, err := store.Load(ctx, key)
	switch {
	case errors.Is(err, account.ErrNoSnapshot):
	case err != nil:
		return 0, errors.Wrap(err, "load snapshot")
	default:
		s, err := account.UnmarshalSnapshot(data)
		if err != nil {
			return 0, err
		}
		orders = s.Orders
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return 0, errors.Wrap(err, "create output")
	}
	defer func() { _ = f.Close() }()

	if err := writeOrders(f, orders); err != nil {
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, errors.Wrap(err, "close output")
	}
	return len(orders), nil
}

func writeOrders(f *os.File, orders []account.Order) error {
	zw := pgzip.NewWriter(f)
	var e jx.Encoder
	for _, o := range orders {
		e.Reset()
		o.Encode(&e)
		if _, err := zw.Write(append(e.Bytes(), '\n')); err != nil {
			return errors.Wrap(err, "write order")
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "flush gzip")
	}
	return nil
}
