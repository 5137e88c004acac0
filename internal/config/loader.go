package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the config file at path over the defaults, then applies a .env
// file if present and ODDSX_* environment overrides. Files ending in .yaml or
// .yml are read as YAML, anything else as TOML. An empty path skips the file.
// The result has not been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, cfg)
	default:
		_, err := toml.DecodeFile(path, cfg)
		return err
	}
}

// applyEnvOverrides lets operators inject secrets and deploy-time settings
// without touching the config file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Exchange.Account, "ODDSX_EXCHANGE_ACCOUNT")
	setInt64(&cfg.Exchange.FaucetLimit, "ODDSX_EXCHANGE_FAUCET_LIMIT")
	setStr(&cfg.Exchange.Store, "ODDSX_EXCHANGE_STORE")
	setStr(&cfg.Exchange.SQLitePath, "ODDSX_EXCHANGE_SQLITE_PATH")

	setStr(&cfg.Database.DSN, "ODDSX_DATABASE_DSN")
	setStr(&cfg.Database.Host, "ODDSX_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ODDSX_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ODDSX_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "ODDSX_DATABASE_USER")
	setStr(&cfg.Database.Password, "ODDSX_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ODDSX_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "ODDSX_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "ODDSX_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "ODDSX_DATABASE_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "ODDSX_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ODDSX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ODDSX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ODDSX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ODDSX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ODDSX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ODDSX_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "ODDSX_REDIS_KEY_PREFIX")

	setStr(&cfg.S3.Endpoint, "ODDSX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ODDSX_S3_REGION")
	setStr(&cfg.S3.Bucket, "ODDSX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ODDSX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ODDSX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ODDSX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ODDSX_S3_FORCE_PATH_STYLE")

	setBool(&cfg.Archive.Enabled, "ODDSX_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "ODDSX_ARCHIVE_CRON")
	setInt(&cfg.Archive.Batch, "ODDSX_ARCHIVE_BATCH")

	setBool(&cfg.Kafka.Enabled, "ODDSX_KAFKA_ENABLED")
	setStringSlice(&cfg.Kafka.Brokers, "ODDSX_KAFKA_BROKERS")
	setStr(&cfg.Kafka.Topic, "ODDSX_KAFKA_TOPIC")

	setInt(&cfg.Server.Port, "ODDSX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ODDSX_SERVER_CORS_ORIGINS")
	setStringSlice(&cfg.Server.APIKeys, "ODDSX_SERVER_API_KEYS")
	setInt(&cfg.Server.RateLimit, "ODDSX_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "ODDSX_SERVER_RATE_WINDOW")
	setDuration(&cfg.Server.IdempotencyTTL, "ODDSX_SERVER_IDEMPOTENCY_TTL")

	setStr(&cfg.Notify.TelegramToken, "ODDSX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ODDSX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ODDSX_NOTIFY_DISCORD_WEBHOOK_URL")
	setBool(&cfg.Notify.Console, "ODDSX_NOTIFY_CONSOLE")
	setStringSlice(&cfg.Notify.Events, "ODDSX_NOTIFY_EVENTS")

	setStr(&cfg.Mode, "ODDSX_MODE")
	setStr(&cfg.LogLevel, "ODDSX_LOG_LEVEL")
}

// Each setter only touches dst when the variable is set and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = n
	}
}

func setInt64(dst *int64, key string) {
	if n, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		*dst = n
	}
}

func setBool(dst *bool, key string) {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = b
	}
}

func setDuration(dst *duration, key string) {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		dst.Duration = d
	}
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
