package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Credential CredentialConfig `mapstructure:"credential"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

// AuditConfig bounds audit trail reads.
type AuditConfig struct {
	DefaultPageSize int    `mapstructure:"default_page_size"`
	MaxPageSize     int    `mapstructure:"max_page_size"`
	ActorLimit      int    `mapstructure:"actor_limit"`
	TopEntities     int    `mapstructure:"top_entities"`
	Timezone        string `mapstructure:"timezone"`
}

// Location resolves Timezone, falling back to UTC when it is empty.
func (a AuditConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading audit timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

// CredentialConfig holds credential policy.
type CredentialConfig struct {
	HistoryLimit int `mapstructure:"history_limit"` // N most recent hashes kept
}

// RateLimitRule is a fixed-window limit.
type RateLimitRule struct {
	Limit  int64         `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// RateLimitConfig holds per endpoint group limits.
type RateLimitConfig struct {
	CredentialChange RateLimitRule `mapstructure:"credential_change"`
	AuditRead        RateLimitRule `mapstructure:"audit_read"`
	AuditWrite       RateLimitRule `mapstructure:"audit_write"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Validate checks values that would otherwise fail at first use.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Credential.HistoryLimit < 1 {
		return fmt.Errorf("credential.history_limit must be at least 1, got %d", c.Credential.HistoryLimit)
	}
	if c.Audit.MaxPageSize < 1 {
		return fmt.Errorf("audit.max_page_size must be at least 1, got %d", c.Audit.MaxPageSize)
	}
	if c.Audit.DefaultPageSize < 1 || c.Audit.DefaultPageSize > c.Audit.MaxPageSize {
		return fmt.Errorf("audit.default_page_size must be between 1 and %d, got %d", c.Audit.MaxPageSize, c.Audit.DefaultPageSize)
	}
	if _, err := c.Audit.Location(); err != nil {
		return err
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: ALG_ (Audit LedGer).
// Nested keys use underscore: ALG_DATABASE_HOST, ALG_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_body_bytes", 64*1024)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "audit_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "1h")
	v.SetDefault("jwt.issuer", "audit-ledger")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("storage.driver", DriverPostgres)
	v.SetDefault("audit.default_page_size", 20)
	v.SetDefault("audit.max_page_size", 200)
	v.SetDefault("audit.actor_limit", 50)
	v.SetDefault("audit.top_entities", 10)
	v.SetDefault("audit.timezone", "UTC")
	v.SetDefault("credential.history_limit", 5)
	v.SetDefault("ratelimit.credential_change.limit", 5)
	v.SetDefault("ratelimit.credential_change.window", "15m")
	v.SetDefault("ratelimit.audit_read.limit", 120)
	v.SetDefault("ratelimit.audit_read.window", "1m")
	v.SetDefault("ratelimit.audit_write.limit", 600)
	v.SetDefault("ratelimit.audit_write.window", "1m")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: ALG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("ALG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
