// Package config loads service configuration from the environment.
// A .env file in the working directory is honored when present (dev
// convenience); deployed environments set the variables directly.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type PostgresConfig struct {
	DSN             string        `envconfig:"PG_DSN" required:"true"`
	MaxOpenConns    int           `envconfig:"PG_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"PG_MAX_IDLE_CONNS" default:"5"`
	ConnMaxIdleTime time.Duration `envconfig:"PG_CONN_MAX_IDLE_TIME" default:"5m"`
	ConnMaxLifetime time.Duration `envconfig:"PG_CONN_MAX_LIFETIME" default:"30m"`
}

type RedisConfig struct {
	// Addr empty disables the quote cache entirely.
	Addr     string        `envconfig:"REDIS_ADDR" default:""`
	Password string        `envconfig:"REDIS_PASSWORD" default:""`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	QuoteTTL time.Duration `envconfig:"REDIS_QUOTE_TTL" default:"1m"`
}

type Config struct {
	Port            uint16        `envconfig:"APP_PORT" default:"8080"`
	LogLevel        slog.Level    `envconfig:"APP_LOG_LEVEL" default:"INFO"`
	ShutdownTimeout time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"10s"`
	Postgres        PostgresConfig
	Redis           RedisConfig
}

// Load reads the environment into a Config.
func Load() (*Config, error) {
	// Missing .env is fine; deployed environments won't have one.
	_ = godotenv.Load()

	cfg := new(Config)
	err := envconfig.Process("", cfg)
	if err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	return cfg, nil
}
