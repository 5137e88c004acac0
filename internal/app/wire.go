package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/alanyoungcy/oddsexchange/internal/blob/s3"
	"github.com/alanyoungcy/oddsexchange/internal/cache/local"
	"github.com/alanyoungcy/oddsexchange/internal/cache/redis"
	"github.com/alanyoungcy/oddsexchange/internal/config"
	"github.com/alanyoungcy/oddsexchange/internal/domain"
	"github.com/alanyoungcy/oddsexchange/internal/exchange"
	"github.com/alanyoungcy/oddsexchange/internal/feed"
	"github.com/alanyoungcy/oddsexchange/internal/notify"
	"github.com/alanyoungcy/oddsexchange/internal/server/handler"
	"github.com/alanyoungcy/oddsexchange/internal/store/memory"
	"github.com/alanyoungcy/oddsexchange/internal/store/postgres"
	"github.com/alanyoungcy/oddsexchange/internal/store/sqlite"
)

// localStreamMaxLen bounds the in-process ledger stream when Redis is off.
const localStreamMaxLen = 10_000

// Dependencies bundles everything the run modes need. It is built by Wire
// and torn down by the cleanup function Wire returns.
type Dependencies struct {
	Exchange *exchange.Exchange

	SignalBus   domain.SignalBus
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter

	// GameArchiver is nil unless the mode runs the archive job.
	GameArchiver domain.GameArchiver
	// Archives reads stored archives back; nil without object storage.
	Archives domain.ArchiveReader

	Notifier *notify.Notifier

	// HealthChecks probe each external backend that was wired.
	HealthChecks map[string]handler.Checker
}

// Wire constructs the concrete implementations selected by cfg and returns
// them with a cleanup function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{HealthChecks: make(map[string]handler.Checker)}

	// --- Ledger store ---
	var uow domain.UnitOfWork
	switch cfg.Exchange.Store {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)
		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		uow = postgres.NewUnitOfWork(pgClient)
		deps.HealthChecks["postgres"] = pgClient.Ping
	case "sqlite":
		st, err := sqlite.Open(ctx, cfg.Exchange.SQLitePath)
		if err != nil {
			return fail(fmt.Errorf("wire: sqlite: %w", err))
		}
		closers = append(closers, func() { _ = st.Close() })
		uow = st
		deps.HealthChecks["sqlite"] = st.Ping
	default:
		uow = memory.New()
	}

	// --- Redis, or in-process equivalents ---
	var poolCache domain.PoolCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		poolCache = redis.NewPoolCache(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	} else {
		deps.SignalBus = feed.NewLocalBus(localStreamMaxLen)
		deps.LockManager = local.NewLockManager()
		deps.RateLimiter = local.NewRateLimiter()
	}

	// --- S3 archive ---
	if cfg.UsesArchive() {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		archiver := s3blob.NewGameArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client))
		if cfg.RunsArchiver() {
			deps.GameArchiver = archiver
		}
		deps.Archives = archiver
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if cfg.Notify.Console {
		senders = append(senders, notify.NewConsoleSender(os.Stdout))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Event export ---
	publisher := feed.Fanout{feed.NewPublisher(deps.SignalBus, logger)}
	if cfg.Kafka.Enabled {
		sink, err := feed.NewKafkaSink(feed.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, logger)
		if err != nil {
			return fail(fmt.Errorf("wire: kafka: %w", err))
		}
		closers = append(closers, func() { _ = sink.Close() })
		publisher = append(publisher, sink)
	}

	// --- Exchange ---
	ex := exchange.New(uow, common.HexToAddress(cfg.Exchange.Account), logger).
		WithPublisher(publisher).
		WithNotifier(deps.Notifier).
		WithFaucet(cfg.Exchange.FaucetLimit)
	if poolCache != nil {
		ex = ex.WithPoolCache(poolCache)
	}
	deps.Exchange = ex

	return deps, cleanup, nil
}
