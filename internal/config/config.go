package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"exam-platform"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Mongo       Mongo
	Redis       Redis
	Security    Security
	Session     Session
	Leaderboard Leaderboard
}

// Mongo captures connection info for the document store.
type Mongo struct {
	URI      string `env:"MONGO_URI,notEmpty"`
	Database string `env:"MONGO_DATABASE" envDefault:"dotest"`
}

// Redis holds the session-scoped cache configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for token validation.
type Security struct {
	JWTSecret string `env:"JWT_SECRET,notEmpty"`
	Issuer    string `env:"JWT_ISSUER" envDefault:"exam-platform"`
}

// Session groups exam-run defaults.
type Session struct {
	Duration        time.Duration `env:"SESSION_DURATION" envDefault:"30m"`
	FirstWarningAt  time.Duration `env:"SESSION_FIRST_WARNING" envDefault:"5m"`
	SecondWarningAt time.Duration `env:"SESSION_SECOND_WARNING" envDefault:"1m"`
}

// Leaderboard governs listing and export behavior.
type Leaderboard struct {
	TopN     int           `env:"LEADERBOARD_TOP" envDefault:"50"`
	CacheTTL time.Duration `env:"LEADERBOARD_CACHE_TTL" envDefault:"5m"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
