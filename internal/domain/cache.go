package domain

import (
	"context"
	"time"
)

// PoolCache holds recent pool snapshots for read paths.
type PoolCache interface {
	Set(ctx context.Context, pool Pool) error
	Get(ctx context.Context, id PoolID) (Pool, error)
	Invalidate(ctx context.Context, id PoolID) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// EventPublisher fans committed ledger events out to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...LedgerEvent) error
}

// Notifier sends human-facing alerts.
type Notifier interface {
	Notify(ctx context.Context, event, message string) error
}
