package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/passcode/internal/passcode"
)

// Store backends for passcode hashes.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName         string        `env:"APP_NAME" envDefault:"Passcode"`
	AppEnv          string        `env:"APP_ENV" envDefault:"development"`
	Port            string        `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RedisURL        string        `env:"REDIS_URL"`
	ShutdownPeriod  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL  time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	JWTSecret       string        `env:"JWT_SECRET"`
	PasscodeLength  int           `env:"PASSCODE_LENGTH" envDefault:"4"`
	HashCost        int           `env:"PASSCODE_HASH_COST" envDefault:"10"`
	SessionTTL      time.Duration `env:"PASSCODE_SESSION_TTL" envDefault:"5m"`
	Store           string        `env:"PASSCODE_STORE"`
	AppearanceFile  string        `env:"APPEARANCE_FILE"`
	FlowCreateLimit int           `env:"FLOW_CREATE_LIMIT" envDefault:"30"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Store = strings.ToLower(cfg.Store)
	if cfg.Store == "" {
		cfg.Store = cfg.defaultStore()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and the infrastructure required outside development.
func (c Config) Validate() error {
	if c.PasscodeLength < 1 || c.PasscodeLength > passcode.MaxLength {
		return fmt.Errorf("PASSCODE_LENGTH must be between 1 and %d", passcode.MaxLength)
	}
	if c.HashCost < bcrypt.MinCost || c.HashCost > bcrypt.MaxCost {
		return fmt.Errorf("PASSCODE_HASH_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("PASSCODE_SESSION_TTL must be positive")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}

	switch c.Store {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when PASSCODE_STORE=redis")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when PASSCODE_STORE=postgres")
		}
	default:
		return fmt.Errorf("unknown PASSCODE_STORE %q", c.Store)
	}

	if !c.IsDev() {
		if c.Store == StoreMemory {
			return fmt.Errorf("PASSCODE_STORE=memory is only allowed when APP_ENV is a development environment")
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set")
		}
	}
	return nil
}

// IsDev reports whether the application runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) defaultStore() string {
	switch {
	case c.DatabaseURL != "":
		return StorePostgres
	case c.RedisURL != "":
		return StoreRedis
	default:
		return StoreMemory
	}
}
