package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "ERPCORE"

// Config holds runtime configuration for the API and migration binaries.
type Config struct {
	Env             string        `envconfig:"ENV" default:"development"`
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr        string        `envconfig:"GRPC_ADDR" default:":9090"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseConfig

	RedisAddr          string        `envconfig:"REDIS_ADDR"`
	PermissionCacheTTL time.Duration `envconfig:"PERMISSION_CACHE_TTL" default:"30s"`

	AuthSecret      string        `envconfig:"AUTH_SECRET" required:"true"`
	AuthIssuer      string        `envconfig:"AUTH_ISSUER" default:"erpcore"`
	AccessTTL       time.Duration `envconfig:"ACCESS_TTL" default:"15m"`
	BcryptCost      int           `envconfig:"BCRYPT_COST" default:"12"`
	MaxFailedLogins int           `envconfig:"MAX_FAILED_LOGINS" default:"5"`
	LockoutDuration time.Duration `envconfig:"LOCKOUT_DURATION" default:"15m"`

	RateBurst  int `envconfig:"RATE_BURST" default:"50"`
	RatePerSec int `envconfig:"RATE_PER_SEC" default:"25"`

	// Optional superuser created at startup when absent.
	SuperuserUsername string `envconfig:"SUPERUSER_USERNAME"`
	SuperuserEmail    string `envconfig:"SUPERUSER_EMAIL"`
	SuperuserPassword string `envconfig:"SUPERUSER_PASSWORD"`
}

// DatabaseConfig is the storage subset of Config, shared with cmd/migrate.
type DatabaseConfig struct {
	PGDSN          string `envconfig:"PG_DSN"`
	PGMaxOpenConns int    `envconfig:"PG_MAX_OPEN_CONNS" default:"50"`
}

// LoadDatabase reads only the database settings, so tools that never serve
// requests do not need the auth secret.
func LoadDatabase() (*DatabaseConfig, error) {
	var cfg DatabaseConfig
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Load reads configuration from ERPCORE_* environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AuthSecret) == "" {
		return errors.New("config: auth secret must be provided")
	}
	if c.MaxFailedLogins < 1 {
		return errors.New("config: max failed logins must be at least 1")
	}
	if c.LockoutDuration <= 0 {
		return errors.New("config: lockout duration must be positive")
	}
	if c.AccessTTL <= 0 {
		return errors.New("config: access ttl must be positive")
	}
	if c.RateBurst < 1 || c.RatePerSec < 1 {
		return errors.New("config: rate limits must be positive")
	}
	if c.SuperuserUsername != "" && c.SuperuserPassword == "" {
		return errors.New("config: superuser password must be provided with superuser username")
	}
	return nil
}

// IsProduction returns true when the service runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// UsesPostgres reports whether a database DSN was configured.
func (c *Config) UsesPostgres() bool {
	return c != nil && strings.TrimSpace(c.PGDSN) != ""
}
