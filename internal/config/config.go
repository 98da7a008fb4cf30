// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all relay server settings. Every field has a usable default
// so the server starts with no environment at all; optional backends
// (Postgres, Redis, NATS) degrade gracefully when left unconfigured.
type Config struct {
	ListenAddr  string `env:"LISTEN_ADDR" env-default:":8080"`
	MetricsAddr string `env:"METRICS_ADDR" env-default:":9100"`

	WorkerPoolSize int `env:"WORKER_POOL_SIZE" env-default:"256"`
	MaxConnections int `env:"MAX_CONNECTIONS" env-default:"100000"`

	ReadTimeout  time.Duration `env:"READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" env-default:"10s"`

	RedisAddr   string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	NATSURL     string `env:"NATS_URL" env-default:"nats://localhost:4222"`
	PostgresDSN string `env:"POSTGRES_DSN" env-default:""`

	MediaDir   string `env:"MEDIA_DIR" env-default:"media"`
	ServerName string `env:"SERVER_NAME" env-default:""`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
