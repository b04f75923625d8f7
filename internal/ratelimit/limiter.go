// Package ratelimit implements a lightweight, in-memory, token-bucket rate
// limiter with per-identity buckets and opportunistic garbage collection.
// The request lifecycle keys it by sender ID to cap how fast one user can
// fire chat requests, independently of the per-pair cooldown window.
//
// Notes:
//   - This limiter is process-local. For horizontally scaled deployments,
//     prefer a distributed limiter (e.g., Redis-backed) to enforce global
//     limits.
//   - It is abuse control, not an authorization mechanism.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitor holds a single rate limiter and the last time it was seen.
// Used to opportunistically evict idle buckets.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter implements a per-key token-bucket rate limiter.
//
// Buckets are created on demand and stored in an internal map guarded by a
// mutex. Idle buckets are evicted after a TTL via opportunistic cleanup
// during lookups to keep memory usage bounded.
//
// This type is safe for concurrent use.
type Limiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// New constructs a Limiter with the given tokens-per-second and burst size.
//
//   - rps:   tokens replenished per second (0 allows no requests; use >0).
//   - burst: maximum burst size; values <= 0 are coerced to 1.
func New(rps float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute, // evict idle entries after TTL
	}
}

// Allow reports whether the bucket for key has a token available and
// consumes one if so.
func (l *Limiter) Allow(key string) bool {
	return l.getVisitor(key).Allow()
}

// getVisitor returns (and updates) the limiter for key, creating it if
// absent. It also performs opportunistic GC of idle entries after ~5000
// lookups.
//
// Run GC before touching the requested visitor so an "old" bucket can be
// evicted even when it's the one being fetched.
func (l *Limiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	l.mu.Lock()
	l.cleanupN++
	if l.cleanupN >= 5000 {
		for k, vv := range l.visitors {
			if now.Sub(vv.lastSeen) >= l.ttl {
				delete(l.visitors, k)
			}
		}
		l.cleanupN = 0
	}

	if v, ok := l.visitors[key]; ok {
		v.lastSeen = now
		lim := v.limiter
		l.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(l.rps, l.burst)
	l.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	l.mu.Unlock()
	return lim
}
