// Package config loads the league engine's runtime configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/draftleague/league-engine/internal/engine"
)

// Config describes the server configuration.
type Config struct {
	Port        string        `env:"PORT" envDefault:"8080"`
	DatabaseURL string        `env:"DATABASE_URL"`
	RedisURL    string        `env:"REDIS_URL"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	ApplySchema bool          `env:"APPLY_SCHEMA" envDefault:"true"`

	FALimit             int  `env:"FA_TRANSACTION_LIMIT" envDefault:"6"`
	P2PLimit            int  `env:"P2P_TRANSACTION_LIMIT" envDefault:"6"`
	AllowNegativeBudget bool `env:"ALLOW_NEGATIVE_BUDGET" envDefault:"false"`
	TradeLockWeeks      int  `env:"TRADE_LOCK_WEEKS" envDefault:"1"`
}

// Load reads .env when present, then parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse loads configuration from environment variables and validates it.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: PORT is required")
	}
	if c.FALimit < 0 || c.P2PLimit < 0 {
		return fmt.Errorf("config: transaction limits must be non-negative (fa=%d, p2p=%d)", c.FALimit, c.P2PLimit)
	}
	if c.TradeLockWeeks < 0 {
		return fmt.Errorf("config: TRADE_LOCK_WEEKS must be non-negative, got %d", c.TradeLockWeeks)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("config: CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	return nil
}

// Engine returns the league rules for the transaction engine.
func (c Config) Engine() engine.Config {
	return engine.Config{
		FALimit:             c.FALimit,
		P2PLimit:            c.P2PLimit,
		AllowNegativeBudget: c.AllowNegativeBudget,
		TradeLockWeeks:      c.TradeLockWeeks,
	}
}
