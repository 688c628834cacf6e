package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/petshop-storefront/internal/domain/search"
	"github.com/xenking/petshop-storefront/internal/storage/postgres"
	"github.com/xenking/petshop-storefront/internal/userstore"
)

const defaultAddr = "0.0.0.0:8080"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (PETSHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	Templates string `default:"" usage:"Directory of *.gohtml page templates; empty uses the bundled ones"`
	Storage   StorageConfig
	Catalog   CatalogConfig
	Search    search.Config
	Hero      HeroConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	UserStore userstore.Config
	Health    HealthConfig
	Graceful  GracefulConfig
}

// StorageConfig selects where per-visitor state lives.
type StorageConfig struct {
	Driver      string `default:"memory" usage:"Storage backend: memory, redis or postgres"`
	DatabaseURL string `usage:"PostgreSQL connection URL (PETSHOP_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Redis       RedisConfig
	Pool        postgres.PoolConfig
}

// RedisConfig configures the redis storage driver.
type RedisConfig struct {
	URL string        `usage:"Redis URL (PETSHOP_STORAGE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	TTL time.Duration `default:"720h" usage:"Idle lifetime of a visitor's keys"`
}

// CatalogConfig controls the category registry and the product generator.
type CatalogConfig struct {
	File string `usage:"YAML category registry; empty uses the bundled one" flag:"catalog-file"`
	Seed uint64 `default:"1" usage:"Product generator seed"`
}

// HeroConfig controls the hero carousel.
type HeroConfig struct {
	Interval time.Duration `default:"5s" usage:"Slide rotation period"`
	Slides   []string      `default:"images/hero/hero-1.jpg,images/hero/hero-2.jpg,images/hero/hero-3.jpg" usage:"Slide image URLs"`
}

// SessionConfig controls the visitor cookie and session lifetime.
type SessionConfig struct {
	CookieName  string        `default:"petshop_session" usage:"Session cookie name"`
	MaxAge      time.Duration `default:"720h" usage:"Session cookie lifetime"`
	Secure      bool          `default:"false" usage:"Mark the session cookie Secure" flag:"session-secure"`
	IdleTimeout time.Duration `default:"30m" usage:"Evict cached sessions idle this long"`
	Retention   time.Duration `default:"0" usage:"Delete stored visitor data older than this (postgres only, 0 keeps it)"`
}

// RateLimitConfig controls the per-visitor sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"300" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// HealthConfig controls the background health checks.
type HealthConfig struct {
	Interval      time.Duration `default:"10s" usage:"Health check period"`
	MaxGoroutines int           `default:"10000" usage:"Liveness fails above this many goroutines"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PETSHOP",
		Files:     []string{"config.yaml", "/etc/petshop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected storage driver is usable.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Storage.Redis.URL == "" {
			return errors.New("redis URL is required: set PETSHOP_STORAGE_REDIS_URL or REDIS_URL")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set PETSHOP_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.RateLimit.Max <= 0 {
		return errors.New("rate limit max must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's PETSHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.Redis.URL == "" {
		c.Storage.Redis.URL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
