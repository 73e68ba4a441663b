// Package config loads node configuration from a YAML file with
// environment-variable overrides, and parses the JSON genesis document the
// node boots its contract set from.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the node's full configuration tree.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Keeper   KeeperConfig   `yaml:"keeper"`
	Genesis  GenesisConfig  `yaml:"genesis"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"PERMNODE_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"PERMNODE_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"PERMNODE_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"PERMNODE_SHUTDOWN_TIMEOUT"`

	// RateLimit is requests per second per client; Burst the allowance
	// above it.
	RateLimit float64 `yaml:"rate_limit" env:"PERMNODE_RATE_LIMIT"`
	Burst     int     `yaml:"burst" env:"PERMNODE_BURST"`
}

// LogConfig configures zerolog output.
type LogConfig struct {
	Level  string `yaml:"level" env:"PERMNODE_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"PERMNODE_LOG_PRETTY"`
}

// AuthConfig configures admin API authentication.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"PERMNODE_JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"PERMNODE_TOKEN_TTL"`
}

// DatabaseConfig configures the Postgres event store. Disabled, the node
// keeps events in memory only.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled" env:"PERMNODE_DB_ENABLED"`
	DSN     string `yaml:"dsn" env:"PERMNODE_DB_DSN"`

	MaxOpenConns    int           `yaml:"max_open_conns" env:"PERMNODE_DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"PERMNODE_DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"PERMNODE_DB_CONN_MAX_LIFETIME"`
}

// RedisConfig configures the read-cache. Disabled, the node caches
// in-process.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled" env:"PERMNODE_REDIS_ENABLED"`
	Addr     string        `yaml:"addr" env:"PERMNODE_REDIS_ADDR"`
	Password string        `yaml:"password" env:"PERMNODE_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"PERMNODE_REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"PERMNODE_REDIS_TTL"`
}

// KeeperConfig configures the scheduled maintenance transactions.
type KeeperConfig struct {
	Enabled bool `yaml:"enabled" env:"PERMNODE_KEEPER_ENABLED"`

	// Cron expressions for the two recurring duties.
	UpdateFeeSpec  string `yaml:"update_fee_spec" env:"PERMNODE_KEEPER_UPDATE_FEE_SPEC"`
	DistributeSpec string `yaml:"distribute_spec" env:"PERMNODE_KEEPER_DISTRIBUTE_SPEC"`
}

// GenesisConfig points at the genesis document.
type GenesisConfig struct {
	Path string `yaml:"path" env:"PERMNODE_GENESIS_PATH"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       50,
			Burst:           100,
		},
		Log:  LogConfig{Level: "info"},
		Auth: AuthConfig{TokenTTL: time.Hour},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  30 * time.Second,
		},
		Keeper: KeeperConfig{
			UpdateFeeSpec:  "@every 5m",
			DistributeSpec: "@daily",
		},
		Genesis: GenesisConfig{Path: "genesis.json"},
	}
}

// Load reads the YAML file at path (skipped when empty), then applies
// environment overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// envdecode errors only on malformed values; absent variables keep
	// their file or default values.
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return cfg, fmt.Errorf("apply env overrides: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the node cannot start with.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr is required")
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("config: database.dsn is required when the event store is enabled")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret is required")
	}
	if c.Genesis.Path == "" {
		return fmt.Errorf("config: genesis.path is required")
	}
	return nil
}
