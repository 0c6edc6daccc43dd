package app

import (
	"os"
	"slices"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Snapshot store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL; enables the PostgreSQL catalog and user directory" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com)" flag:"image-base-url"`
	Storage      StorageConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StorageConfig selects where the account snapshot is persisted.
type StorageConfig struct {
	Backend   string `default:"memory" usage:"Snapshot store: memory, file, redis or postgres"`
	Key       string `default:"auth-storage" usage:"Key the snapshot is saved under"`
	Dir       string `default:"data" usage:"Directory for the file backend"`
	RedisAddr string `default:"localhost:6379" usage:"Redis address for the redis backend" flag:"redis-addr"`
}

// AuthConfig controls the mock authentication.
type AuthConfig struct {
	Latency time.Duration `default:"1s" usage:"Simulated round trip of login and register"`
	DirectoryRefresh time.Duration `default:"1m" usage:"Interval to re-read PostgreSQL user emails, 0 disables" flag:"directory-refresh"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window, 0 disables"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and flags, then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(baseLoaderConfig())
}

// LoadEnvConfig is LoadConfig without command line flags, for tools that
// parse their own.
func LoadEnvConfig() (*Config, error) {
	ac := baseLoaderConfig()
	ac.SkipFlags = true
	return loadConfig(ac)
}

func baseLoaderConfig() aconfig.Config {
	return aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/minishop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	}
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	backends := []string{BackendMemory, BackendFile, BackendRedis, BackendPostgres}
	if !slices.Contains(backends, c.Storage.Backend) {
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendPostgres && c.DatabaseURL == "" {
		return errors.New("postgres storage requires SHOP_DATABASE_URL or DATABASE_URL")
	}
	if c.Storage.Key == "" {
		return errors.New("storage key is required")
	}
	if c.Auth.Latency < 0 {
		return errors.New("auth latency must not be negative")
	}
	if c.Auth.DirectoryRefresh < 0 {
		return errors.New("directory refresh must not be negative")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (DATABASE_URL, PORT) to the SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
