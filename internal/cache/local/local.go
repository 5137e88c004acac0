// Package local provides single-process stand-ins for the Redis-backed
// lock and rate limiter, used when Redis is disabled.
package local

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// LockManager implements domain.LockManager within one process.
type LockManager struct {
	mu    sync.Mutex
	held  map[string]uint64
	seq   uint64
	clock func() time.Time
	until map[string]time.Time
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{
		held:  make(map[string]uint64),
		until: make(map[string]time.Time),
		clock: time.Now,
	}
}

// Acquire takes key until ttl elapses or unlock is called.
func (l *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if _, ok := l.held[key]; ok && now.Before(l.until[key]) {
		return nil, domain.ErrLockHeld
	}
	l.seq++
	token := l.seq
	l.held[key] = token
	l.until[key] = now.Add(ttl)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key] == token {
				delete(l.held, key)
				delete(l.until, key)
			}
		})
	}, nil
}

// RateLimiter implements domain.RateLimiter with one token bucket per key.
// limit requests are allowed per window, refilled evenly across it.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether a request for key fits the budget.
func (r *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	r.mu.Lock()
	lim, ok := r.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
		r.limiters[key] = lim
	}
	r.mu.Unlock()
	return lim.Allow(), nil
}

var (
	_ domain.LockManager = (*LockManager)(nil)
	_ domain.RateLimiter = (*RateLimiter)(nil)
)
