// Package ratelimit bounds request throughput per caller identity with a
// fixed window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/handoff-bridge/internal/clock"
)

// Defaults per the ingest contract: 10 admitted operations per identity
// per 1-second window, with a deterministic 1-second retry hint.
const (
	DefaultLimit  = 10
	DefaultWindow = time.Second
)

// Limiter admits or rejects an operation for an identity.
type Limiter interface {
	// Allow reports whether the identity may proceed within the current
	// window.
	Allow(ctx context.Context, identity string) (bool, error)
	// RetryAfter is the fixed interval rejected callers should wait. It
	// does not depend on queue depth.
	RetryAfter() time.Duration
}

type window struct {
	start time.Time
	count int
}

// MemoryLimiter is the in-process fixed-window limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]window

	limit    int
	interval time.Duration
	clock    clock.Clock
}

// Options configures a limiter.
type Options struct {
	Limit  int
	Window time.Duration
	Clock  clock.Clock
}

// NewMemoryLimiter constructs the in-process limiter.
func NewMemoryLimiter(opts Options) *MemoryLimiter {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	return &MemoryLimiter{
		windows:  make(map[string]window),
		limit:    opts.Limit,
		interval: opts.Window,
		clock:    opts.Clock,
	}
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, identity string) (bool, error) {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identity]
	if !ok || now.Sub(w.start) >= l.interval {
		// Opening a new window doubles as eviction for this identity;
		// stale identities are dropped lazily on their next request.
		l.windows[identity] = window{start: now, count: 1}
		return true, nil
	}
	if w.count >= l.limit {
		return false, nil
	}
	w.count++
	l.windows[identity] = w
	return true, nil
}

// RetryAfter implements Limiter.
func (l *MemoryLimiter) RetryAfter() time.Duration {
	return l.interval
}

// RedisLimiter shares the fixed window across processes via INCR with a
// window-length expiry.
type RedisLimiter struct {
	client   *redis.Client
	limit    int
	interval time.Duration
}

// NewRedisLimiter constructs a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, opts Options) *RedisLimiter {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	return &RedisLimiter{client: client, limit: opts.Limit, interval: opts.Window}
}

// Allow implements Limiter. On Redis failure the limiter fails open so an
// unavailable cache never blocks ingest.
func (l *RedisLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	key := "handoff:ratelimit:" + identity
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.interval)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}
	return incr.Val() <= int64(l.limit), nil
}

// RetryAfter implements Limiter.
func (l *RedisLimiter) RetryAfter() time.Duration {
	return l.interval
}
