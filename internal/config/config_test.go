package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.ServesHTTP())
	assert.False(t, cfg.RunsArchiver())
}

func TestServerReadsArchivesWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Archive.Enabled = true
	require.NoError(t, cfg.Validate(), "serving archives does not need a durable store")
	assert.True(t, cfg.UsesArchive())
	assert.False(t, cfg.RunsArchiver())

	cfg.S3.Bucket = ""
	assert.ErrorContains(t, cfg.Validate(), "s3: bucket must not be empty")
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
mode = "full"
log_level = "debug"

[exchange]
store = "postgres"
faucet_limit = 5000000

[database]
dsn = "postgres://x@localhost/oddsx"

[archive]
enabled = true
cron = "0 * * * *"

[server]
port = 9090
rate_window = "30s"
api_keys = ["k1"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, "postgres", cfg.Exchange.Store)
	assert.Equal(t, int64(5_000_000), cfg.Exchange.FaucetLimit)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RateWindow.Duration)
	assert.Equal(t, []string{"k1"}, cfg.Server.APIKeys)
	assert.True(t, cfg.RunsArchiver())
	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"game_ended"}, cfg.Notify.Events)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
mode: archive
exchange:
  store: sqlite
  sqlite_path: /var/lib/oddsx/ledger.db
s3:
  bucket: games
  region: eu-west-1
archive:
  batch: 25
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "archive", cfg.Mode)
	assert.Equal(t, "/var/lib/oddsx/ledger.db", cfg.Exchange.SQLitePath)
	assert.Equal(t, "games", cfg.S3.Bucket)
	assert.Equal(t, 25, cfg.Archive.Batch)
	assert.False(t, cfg.ServesHTTP())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ODDSX_SERVER_PORT", "7000")
	t.Setenv("ODDSX_SERVER_API_KEYS", " a , ,b ")
	t.Setenv("ODDSX_SERVER_RATE_WINDOW", "2m")
	t.Setenv("ODDSX_REDIS_ENABLED", "true")
	t.Setenv("ODDSX_EXCHANGE_FAUCET_LIMIT", "42")
	t.Setenv("ODDSX_DATABASE_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, []string{"a", "b"}, cfg.Server.APIKeys)
	assert.Equal(t, 2*time.Minute, cfg.Server.RateWindow.Duration)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, int64(42), cfg.Exchange.FaucetLimit)
	assert.Equal(t, 5432, cfg.Database.Port, "unparseable values are ignored")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Exchange.Account = "nope"
	cfg.Exchange.Store = "mysql"
	cfg.Notify.TelegramToken = "t"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"unknown mode", "not a hex address", "unknown store", "telegram_chat_id"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateArchiveNeedsDurableStore(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "archive"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "durable store")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Password = "hunter2"
	cfg.S3.SecretKey = "s3cret"
	cfg.Server.APIKeys = []string{"key-1", "key-2"}

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Database.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, []string{"***", "***"}, red.Server.APIKeys)
	assert.Empty(t, red.Redis.Password, "empty secrets stay empty")

	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, []string{"key-1", "key-2"}, cfg.Server.APIKeys)
}
