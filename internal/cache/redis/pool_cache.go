package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

const poolTTL = 30 * time.Second

// PoolCache implements domain.PoolCache with one JSON string per pool.
//
// Key schema:
//
//	pool:{poolID} - JSON-encoded domain.Pool, expires after poolTTL
type PoolCache struct {
	c   *Client
	ttl time.Duration
}

// NewPoolCache creates a PoolCache backed by the given Client.
func NewPoolCache(c *Client) *PoolCache {
	return &PoolCache{c: c, ttl: poolTTL}
}

// Set stores a pool snapshot.
func (pc *PoolCache) Set(ctx context.Context, pool domain.Pool) error {
	data, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("redis: marshal pool %s: %w", pool.ID, err)
	}
	if err := pc.c.rdb.Set(ctx, pc.c.Key("pool", pool.ID.String()), data, pc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set pool %s: %w", pool.ID, err)
	}
	return nil
}

// Get returns a cached pool or domain.ErrNotFound.
func (pc *PoolCache) Get(ctx context.Context, id domain.PoolID) (domain.Pool, error) {
	data, err := pc.c.rdb.Get(ctx, pc.c.Key("pool", id.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Pool{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Pool{}, fmt.Errorf("redis: get pool %s: %w", id, err)
	}
	var pool domain.Pool
	if err := json.Unmarshal(data, &pool); err != nil {
		return domain.Pool{}, fmt.Errorf("redis: unmarshal pool %s: %w", id, err)
	}
	return pool, nil
}

// Invalidate drops a cached pool.
func (pc *PoolCache) Invalidate(ctx context.Context, id domain.PoolID) error {
	if err := pc.c.rdb.Del(ctx, pc.c.Key("pool", id.String())).Err(); err != nil {
		return fmt.Errorf("redis: invalidate pool %s: %w", id, err)
	}
	return nil
}

var _ domain.PoolCache = (*PoolCache)(nil)
