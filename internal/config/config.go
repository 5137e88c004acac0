// Package config defines the exchange's configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration. Fields come from a TOML (or YAML) file
// and are then overridden by ODDSX_* environment variables.
type Config struct {
	Exchange ExchangeConfig `toml:"exchange" yaml:"exchange"`
	Database DatabaseConfig `toml:"database" yaml:"database"`
	Redis    RedisConfig    `toml:"redis" yaml:"redis"`
	S3       S3Config       `toml:"s3" yaml:"s3"`
	Archive  ArchiveConfig  `toml:"archive" yaml:"archive"`
	Kafka    KafkaConfig    `toml:"kafka" yaml:"kafka"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Notify   NotifyConfig   `toml:"notify" yaml:"notify"`
	Mode     string         `toml:"mode" yaml:"mode"`
	LogLevel string         `toml:"log_level" yaml:"log_level"`
}

// ExchangeConfig selects the ledger store and the exchange's own account.
type ExchangeConfig struct {
	// Account is the address that holds escrowed collateral.
	Account string `toml:"account" yaml:"account"`
	// FaucetLimit caps a single faucet mint in base units; 0 disables it.
	FaucetLimit int64 `toml:"faucet_limit" yaml:"faucet_limit"`
	// Store is "memory", "postgres" or "sqlite".
	Store      string `toml:"store" yaml:"store"`
	SQLitePath string `toml:"sqlite_path" yaml:"sqlite_path"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn" yaml:"dsn"`
	Host          string `toml:"host" yaml:"host"`
	Port          int    `toml:"port" yaml:"port"`
	Database      string `toml:"database" yaml:"database"`
	User          string `toml:"user" yaml:"user"`
	Password      string `toml:"password" yaml:"password"`
	SSLMode       string `toml:"ssl_mode" yaml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns" yaml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns" yaml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations" yaml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. With Enabled false the
// exchange uses in-process locks, limits and event fan-out.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled" yaml:"enabled"`
	Addr       string `toml:"addr" yaml:"addr"`
	Password   string `toml:"password" yaml:"password"`
	DB         int    `toml:"db" yaml:"db"`
	PoolSize   int    `toml:"pool_size" yaml:"pool_size"`
	MaxRetries int    `toml:"max_retries" yaml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled" yaml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix" yaml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint" yaml:"endpoint"`
	Region         string `toml:"region" yaml:"region"`
	Bucket         string `toml:"bucket" yaml:"bucket"`
	AccessKey      string `toml:"access_key" yaml:"access_key"`
	SecretKey      string `toml:"secret_key" yaml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl" yaml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style" yaml:"force_path_style"`
}

// ArchiveConfig schedules copying ended games to S3.
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Cron    string `toml:"cron" yaml:"cron"`
	Batch   int    `toml:"batch" yaml:"batch"`
}

// KafkaConfig exports committed ledger events to a Kafka topic.
type KafkaConfig struct {
	Enabled bool     `toml:"enabled" yaml:"enabled"`
	Brokers []string `toml:"brokers" yaml:"brokers"`
	Topic   string   `toml:"topic" yaml:"topic"`
}

// duration wraps time.Duration so config files can say "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port" yaml:"port"`
	CORSOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
	// APIKeys authorise game administration.
	APIKeys    []string `toml:"api_keys" yaml:"api_keys"`
	RateLimit  int      `toml:"rate_limit" yaml:"rate_limit"`
	RateWindow duration `toml:"rate_window" yaml:"rate_window"`
	// IdempotencyTTL blocks replayed Idempotency-Key headers; 0 disables it.
	IdempotencyTTL duration `toml:"idempotency_ttl" yaml:"idempotency_ttl"`
}

// NotifyConfig holds alert channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token" yaml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id" yaml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url" yaml:"discord_webhook_url"`
	Console           bool     `toml:"console" yaml:"console"`
	Events            []string `toml:"events" yaml:"events"`
}

// Defaults returns a Config populated with the values in config.example.toml.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			Account:    "0x000000000000000000000000000000000000e5c0",
			Store:      "memory",
			SQLitePath: "oddsexchange.db",
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "oddsexchange",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "oddsx:",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "oddsexchange-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Cron:  "*/15 * * * *",
			Batch: 100,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "oddsx.ledger",
		},
		Server: ServerConfig{
			Port:           8000,
			CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:      120,
			RateWindow:     duration{time.Minute},
			IdempotencyTTL: duration{10 * time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"game_ended"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":  true,
	"archive": true,
	"full":    true,
}

var validStores = map[string]bool{
	"memory":   true,
	"postgres": true,
	"sqlite":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ServesHTTP reports whether the mode runs the API server.
func (c *Config) ServesHTTP() bool {
	return c.Mode == "server" || c.Mode == "full"
}

// RunsArchiver reports whether the mode runs the archive job.
func (c *Config) RunsArchiver() bool {
	return c.Mode == "archive" || (c.Mode == "full" && c.Archive.Enabled)
}

// UsesArchive reports whether the mode writes archives or, with archiving
// enabled, serves them over HTTP.
func (c *Config) UsesArchive() bool {
	return c.RunsArchiver() || (c.ServesHTTP() && c.Archive.Enabled)
}

// Validate checks Config and returns one error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[c.Mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if !common.IsHexAddress(c.Exchange.Account) {
		errs = append(errs, fmt.Sprintf("exchange: account %q is not a hex address", c.Exchange.Account))
	}
	if c.Exchange.FaucetLimit < 0 {
		errs = append(errs, "exchange: faucet_limit must be >= 0")
	}
	if !validStores[c.Exchange.Store] {
		errs = append(errs, fmt.Sprintf("exchange: unknown store %q (valid: memory, postgres, sqlite)", c.Exchange.Store))
	}
	if c.Exchange.Store == "sqlite" && strings.TrimSpace(c.Exchange.SQLitePath) == "" {
		errs = append(errs, "exchange: sqlite_path must be set for the sqlite store")
	}

	if c.Exchange.Store == "postgres" {
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				errs = append(errs, "database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
			}
			if c.Database.Database == "" {
				errs = append(errs, "database: database must not be empty")
			}
		}
		if c.Database.PoolMaxConns < 1 {
			errs = append(errs, "database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns < 0 || c.Database.PoolMinConns > c.Database.PoolMaxConns {
			errs = append(errs, "database: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, "kafka: brokers must not be empty")
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, "kafka: topic must not be empty")
		}
	}

	if c.RunsArchiver() && c.Exchange.Store == "memory" {
		errs = append(errs, "archive: needs a durable store, not memory")
	}
	if c.UsesArchive() {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}
	if c.RunsArchiver() && c.Archive.Cron == "" {
		errs = append(errs, "archive: cron must not be empty")
	}

	if c.ServesHTTP() {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.IdempotencyTTL.Duration < 0 {
			errs = append(errs, "server: idempotency_ttl must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be positive when rate_limit is set")
		}
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
