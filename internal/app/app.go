// Package app wires the shop's storage, domain and HTTP layers together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/minishop/db"
	"github.com/xenking/minishop/internal/domain/account"
	"github.com/xenking/minishop/internal/domain/cart"
	"github.com/xenking/minishop/internal/domain/checkout"
	"github.com/xenking/minishop/internal/domain/product"
	"github.com/xenking/minishop/internal/handler"
	"github.com/xenking/minishop/internal/storage/file"
	"github.com/xenking/minishop/internal/storage/memory"
	"github.com/xenking/minishop/internal/storage/postgres"
	"github.com/xenking/minishop/internal/storage/redisstore"
	"github.com/xenking/minishop/pkg/health"
	"github.com/xenking/minishop/pkg/httpmiddleware"
)

// Telemetry supplies tracer and meter providers.
type Telemetry = httpmiddleware.Telemetry

// Server is the assembled application: ledgers restored, routes mounted,
// probes registered.
type Server struct {
	cfg     *Config
	lg      *zap.Logger
	health  *health.Health
	limiter *httpmiddleware.Limiter
	users   *postgres.UserDirectory
	handler http.Handler
	closers []func()
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close releases storage connections.
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// storage is the set of ports selected by configuration.
type storage struct {
	catalog   product.Catalog
	directory account.Directory
	store     account.Store
}

// NewServer builds the application from cfg. The caller must Close it.
func NewServer(ctx context.Context, lg *zap.Logger, tel Telemetry, cfg *Config) (_ *Server, rerr error) {
	s := &Server{
		cfg:    cfg,
		lg:     lg,
		health: health.New(),
	}
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	st, err := s.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	ledger := account.NewLedger(st.directory,
		account.WithStore(st.store, cfg.Storage.Key),
		account.WithLatency(cfg.Auth.Latency),
	)
	if err := ledger.Restore(ctx); err != nil {
		return nil, errors.Wrap(err, "restore account ledger")
	}
	lg.Info("Account ledger restored",
		zap.Bool("logged_in", ledger.LoggedIn()),
		zap.Int("orders", len(ledger.Orders())),
	)

	c := cart.NewLedger()
	co := checkout.NewService(c, ledger, checkout.WithTracerProvider(tel.TracerProvider()))
	h, err := handler.New(
		handler.Config{ImageBaseURL: cfg.ImageBaseURL},
		st.catalog, c, ledger, co,
		tel.MeterProvider(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create handler")
	}

	s.health.AddReadinessCheck("snapshot", 5*time.Second, snapshotCheck(st.store, cfg.Storage.Key))
	s.health.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	s.limiter = httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})

	r := chi.NewRouter()
	r.Use(
		httpmiddleware.Instrument("minishop", handler.RoutePattern, tel),
		httpmiddleware.LogRequests(handler.RoutePattern),
	)
	r.Get("/livez", s.health.LiveEndpoint)
	r.Get("/readyz", s.health.ReadyEndpoint)
	h.Mount(r)

	// Route patterns are only known inside the router, so the route-aware
	// middlewares are mounted on it and the rest wrap it.
	s.handler = httpmiddleware.Wrap(r,
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		s.limiter.Middleware(),
	)

	return s, nil
}

func (s *Server) openStorage(ctx context.Context) (*storage, error) {
	cfg := s.cfg
	st := &storage{}

	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s.closers = append(s.closers, pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		users := postgres.NewUserDirectory(pool)
		if err := users.Seed(ctx, account.DemoUsers()); err != nil {
			return nil, errors.Wrap(err, "seed demo users")
		}
		n, err := users.Warm(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "warm user directory")
		}
		s.lg.Info("User directory warmed", zap.Int("emails", n))

		st.catalog = postgres.NewProductRepository(pool)
		st.directory = users
		s.users = users
		if cfg.Storage.Backend == BackendPostgres {
			st.store = postgres.NewSnapshotStore(pool)
		}
		s.health.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	} else {
		products, err := product.ParseList(db.Products)
		if err != nil {
			return nil, errors.Wrap(err, "load demo catalog")
		}
		st.catalog = memory.NewCatalog(products)
		st.directory = memory.NewDirectory(account.DemoUsers()...)
	}

	if st.store == nil {
		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, closeStore)
		st.store = store
		if p, ok := store.(health.Pinger); ok {
			s.health.AddReadinessCheck(cfg.Storage.Backend, 5*time.Second, health.PingCheck(p))
		}
	}

	s.lg.Info("Storage ready",
		zap.String("backend", cfg.Storage.Backend),
		zap.Bool("database", cfg.DatabaseURL != ""),
	)
	return st, nil
}

// OpenSnapshotStore opens the snapshot store selected by cfg.Storage.Backend.
// The returned func releases its connections.
func OpenSnapshotStore(ctx context.Context, cfg *Config) (account.Store, func(), error) {
	if cfg.Storage.Backend != BackendPostgres {
		return openStore(ctx, cfg)
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "run migrations")
	}
	return postgres.NewSnapshotStore(pool), pool.Close, nil
}

// openStore opens the non-postgres snapshot backends.
func openStore(ctx context.Context, cfg *Config) (account.Store, func(), error) {
	nop := func() {}
	switch cfg.Storage.Backend {
	case BackendMemory:
		return memory.NewStore(), nop, nil
	case BackendFile:
		fs, err := file.NewStore(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open file store")
		}
		return fs, nop, nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
		rs := redisstore.NewStore(client)
		if err := rs.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, errors.Wrap(err, "ping redis")
		}
		return rs, func() { _ = client.Close() }, nil
	default:
		return nil, nil, errors.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// snapshotCheck reports whether the snapshot store answers reads.
func snapshotCheck(store account.Store, key string) health.CheckFunc {
	return func(ctx context.Context) error {
		if _, err := store.Load(ctx, key); err != nil && !errors.Is(err, account.ErrNoSnapshot) {
			return err
		}
		return nil
	}
}

// Run builds the server, serves until ctx is cancelled and then shuts down
// gracefully: readiness drops first, in-flight requests drain, storage
// closes last.
func Run(ctx context.Context, lg *zap.Logger, tel Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	s, err := NewServer(ctx, lg, tel, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
	}

	s.health.Start(ctx, 10*time.Second)
	defer s.health.Stop()
	s.health.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.limiter.Run(gctx)
	})
	if s.users != nil && cfg.Auth.DirectoryRefresh > 0 {
		g.Go(func() error {
			return s.users.Refresh(zctx.Base(gctx, lg), cfg.Auth.DirectoryRefresh)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}
