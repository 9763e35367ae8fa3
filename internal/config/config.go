package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/citywalk.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// RedisURL is optional. When set, progress events fan out across
	// instances and route lookups are cached.
	RedisURL string `env:"REDIS_URL"`

	JWTSecret         string        `env:"JWT_SECRET"`
	AllowUserIDHeader bool          `env:"AUTH_ALLOW_USER_HEADER" envDefault:"false"`
	EventsChannel     string        `env:"EVENTS_CHANNEL" envDefault:"citywalk:progress"`
	SeedDemo          bool          `env:"SEED_DEMO" envDefault:"true"`
	RoutingURL        string        `env:"ROUTING_URL"`
	RouteCacheTTL     time.Duration `env:"ROUTE_CACHE_TTL" envDefault:"24h"`
	RoutingTimeout    time.Duration `env:"ROUTING_TIMEOUT" envDefault:"5s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.JWTSecret == "" && !cfg.AllowUserIDHeader {
		return nil, errors.New("JWT_SECRET is required unless AUTH_ALLOW_USER_HEADER is enabled")
	}
	return &cfg, nil
}
