package config

import (
	"calc-server/internal/calc"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	Port            int           `env:"PORT" envDefault:"3100"`
	Env             string        `env:"ENV" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigin      string        `env:"CORS_ORIGIN"`
	AllowedIPs      []string      `env:"ALLOWED_IPS" envSeparator:","`
	BodyLimitMB     int64         `env:"BODY_LIMIT_MB" envDefault:"50"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	OfferWorkers          int    `env:"OFFER_WORKERS" envDefault:"0"`
	AllOffersFailedPolicy string `env:"ALL_OFFERS_FAILED_POLICY" envDefault:"error"`

	RedisAddr           string        `env:"REDIS_ADDR"`
	RedisPassword       string        `env:"REDIS_PASSWORD"`
	RedisDB             int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL            time.Duration `env:"CACHE_TTL" envDefault:"10m"`
	RedisConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

// IsProduction reports whether ENV=production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// CacheEnabled reports whether a Redis address was configured.
func (c *Config) CacheEnabled() bool { return c.RedisAddr != "" }

// Policy returns the parsed all-offers-failed policy.
func (c *Config) Policy() calc.AllFailedPolicy {
	p, _ := calc.ParsePolicy(c.AllOffersFailedPolicy)
	return p
}

// Load reads the environment. Outside production a .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (*Config, error) {
	if os.Getenv("ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return Parse()
}

// Parse reads the environment without touching .env.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate fields
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	if cfg.BodyLimitMB <= 0 {
		return nil, fmt.Errorf("BODY_LIMIT_MB must be positive, got %d", cfg.BodyLimitMB)
	}
	if cfg.OfferWorkers < 0 {
		return nil, fmt.Errorf("OFFER_WORKERS must not be negative, got %d", cfg.OfferWorkers)
	}
	if _, err := calc.ParsePolicy(cfg.AllOffersFailedPolicy); err != nil {
		return nil, fmt.Errorf("ALL_OFFERS_FAILED_POLICY: %w", err)
	}
	if cfg.CacheEnabled() && cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("CACHE_TTL must be positive when REDIS_ADDR is set")
	}

	return &cfg, nil
}
