package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	StoreBackend     string        `env:"STORE_BACKEND" default:"postgres"`
	BrokerBackend    string        `env:"BROKER_BACKEND" default:"redis"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	DBConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"10s"`
	RedisURL         string        `env:"REDIS_URL"`

	FrontendDir string `env:"FRONTEND_DIR"`
	SeedBoards  bool   `env:"SEED_BOARDS" default:"true"`

	WatchRelayClientUpdates bool          `env:"WATCH_RELAY_CLIENT_UPDATES" default:"false"`
	WatchKeepaliveInterval  time.Duration `env:"WATCH_KEEPALIVE_INTERVAL" default:"30s"`
	WatchAllowedOrigins     string        `env:"WATCH_ALLOWED_ORIGINS"`

	WatchMaxConnections      int64   `env:"WATCH_MAX_CONNECTIONS" default:"10000"`
	WatchMaxConnectionsPerIP int     `env:"WATCH_MAX_CONNECTIONS_PER_IP" default:"50"`
	WatchConnectRate         float64 `env:"WATCH_CONNECT_RATE" default:"10"`
	WatchConnectBurst        int     `env:"WATCH_CONNECT_BURST" default:"20"`

	UpdateRateLimit float64 `env:"UPDATE_RATE_LIMIT" default:"20"`
	UpdateRateBurst int     `env:"UPDATE_RATE_BURST" default:"40"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AllowedOrigins splits WATCH_ALLOWED_ORIGINS. An empty result allows every origin.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.WatchAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func validate(cfg *Config) error {
	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, cfg.StoreBackend)
	}

	switch cfg.BrokerBackend {
	case BackendRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("BROKER_BACKEND must be %q or %q, got %q", BackendRedis, BackendMemory, cfg.BrokerBackend)
	}

	if cfg.DBConnectTimeout <= 0 {
		return errors.New("DB_CONNECT_TIMEOUT must be positive")
	}
	if cfg.WatchKeepaliveInterval < 0 {
		return errors.New("WATCH_KEEPALIVE_INTERVAL must not be negative")
	}
	if cfg.WatchMaxConnections < 0 || cfg.WatchMaxConnectionsPerIP < 0 || cfg.WatchConnectRate < 0 || cfg.WatchConnectBurst < 0 {
		return errors.New("WATCH_MAX_CONNECTIONS, WATCH_MAX_CONNECTIONS_PER_IP, WATCH_CONNECT_RATE and WATCH_CONNECT_BURST must not be negative")
	}
	if cfg.UpdateRateLimit <= 0 || cfg.UpdateRateBurst <= 0 {
		return errors.New("UPDATE_RATE_LIMIT and UPDATE_RATE_BURST must be positive")
	}

	if cfg.IsProduction() && cfg.StoreBackend == BackendPostgres {
		if err := requireSecureSSLMode(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	return nil
}

func requireSecureSSLMode(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	switch mode := u.Query().Get("sslmode"); mode {
	case "disable", "allow":
		return fmt.Errorf("DATABASE_URL sslmode=%s is not allowed in production", mode)
	}
	return nil
}
