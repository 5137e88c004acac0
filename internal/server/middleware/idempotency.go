package middleware

import (
	"net/http"
	"sync"
	"time"
)

// IdempotencyHeader carries a client-chosen key for a state-changing request.
const IdempotencyHeader = "Idempotency-Key"

// Dedup remembers keys for a TTL. It is safe for concurrent use.
type Dedup struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewDedup creates a Dedup that treats a key as a duplicate for ttl after it
// was first seen.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Seen records key and reports whether it was already recorded within the
// TTL. Expired keys are swept at most once per TTL.
func (d *Dedup) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.Sub(d.lastSweep) >= d.ttl {
		for k, ts := range d.seen {
			if now.Sub(ts) >= d.ttl {
				delete(d.seen, k)
			}
		}
		d.lastSweep = now
	}

	if ts, ok := d.seen[key]; ok && now.Sub(ts) < d.ttl {
		return true
	}
	d.seen[key] = now
	return false
}

// Release forgets key so it can be used again.
func (d *Dedup) Release(key string) {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
}

// Idempotent rejects a replayed Idempotency-Key from the same account with
// 409, so a client retrying a bet cannot place it twice. The key is reserved
// while the request runs and kept only if the handler answers 2xx; a failed
// request can be retried with the same key. Requests without the header pass
// through.
func Idempotent(d *Dedup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			scoped := clientKey(r) + "|" + r.URL.Path + "|" + key
			if d.Seen(scoped) {
				writeJSONError(w, http.StatusConflict, "duplicate request")
				return
			}
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			if rw.statusCode < 200 || rw.statusCode >= 300 {
				d.Release(scoped)
			}
		})
	}
}
