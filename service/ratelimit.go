package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/effectmoe/contract-system/pkg/logger"
	"github.com/effectmoe/contract-system/pkg/metrics"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
	// StoreErr is set when the counter store failed and the fail policy decided.
	StoreErr error
}

// CounterStore keeps fixed-window hit counters. Take admits one hit for key
// unless limit hits were already admitted in the current window; a refused
// hit does not increment the counter. Take must be atomic per key.
type CounterStore interface {
	Take(ctx context.Context, key string, limit int, window time.Duration) (count int, allowed bool, resetAt time.Time, err error)
}

// RateLimiter gates requests per key. When the counter store fails, the
// request is allowed only if failOpen is set.
type RateLimiter struct {
	store    CounterStore
	failOpen bool
}

// NewRateLimiter creates a new rate limiter. failOpen decides what happens when
// the counter store cannot be reached.
func NewRateLimiter(store CounterStore, failOpen bool) *RateLimiter {
	return &RateLimiter{store: store, failOpen: failOpen}
}

// CheckLimit counts one request against key and reports whether it may proceed.
func (l *RateLimiter) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	count, allowed, resetAt, err := l.store.Take(ctx, key, limit, window)
	if err != nil {
		metrics.RateLimitStoreError()
		logger.Warn(ctx, "rate limit store unavailable",
			"key", key,
			"fail_open", l.failOpen,
			"error", err,
		)
		return Decision{
			Allowed:   l.failOpen,
			Limit:     limit,
			Remaining: 0,
			ResetAt:   time.Now().Add(window),
			StoreErr:  err,
		}
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed,
		Count:     count,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// MemoryCounter is a process-local CounterStore.
type MemoryCounter struct {
	mu    sync.Mutex
	items map[string]counterEntry
	now   func() time.Time
}

type counterEntry struct {
	count   int
	resetAt time.Time
}

// NewMemoryCounter creates an in-process counter store.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		items: make(map[string]counterEntry),
		now:   time.Now,
	}
}

func (m *MemoryCounter) Take(_ context.Context, key string, limit int, window time.Duration) (int, bool, time.Time, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanup(now)
	curr, ok := m.items[key]
	if !ok || !now.Before(curr.resetAt) {
		curr = counterEntry{resetAt: now.Add(window)}
	}
	if curr.count >= limit {
		m.items[key] = curr
		return curr.count, false, curr.resetAt, nil
	}
	curr.count++
	m.items[key] = curr
	return curr.count, true, curr.resetAt, nil
}

func (m *MemoryCounter) cleanup(now time.Time) {
	for k, v := range m.items {
		if !now.Before(v.resetAt) {
			delete(m.items, k)
		}
	}
}

// takeScript refuses without incrementing once the limit is reached, and
// starts the window TTL on the first admitted hit.
var takeScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[1]) then
  return {0, current, redis.call("PTTL", KEYS[1])}
end
current = redis.call("INCR", KEYS[1])
if current == 1 or redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return {1, current, redis.call("PTTL", KEYS[1])}
`)

// RedisCounter keeps counters in Redis so limits hold across instances.
type RedisCounter struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisCounter creates a counter store backed by Redis.
func NewRedisCounter(client *redis.Client, timeout time.Duration) *RedisCounter {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisCounter{client: client, prefix: "rl:", timeout: timeout}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string, timeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisCounter) Take(ctx context.Context, key string, limit int, window time.Duration) (int, bool, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vals, err := takeScript.Run(ctx, r.client, []string{r.prefix + key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, false, time.Time{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) < 3 {
		return 0, false, time.Time{}, fmt.Errorf("rate limit script: unexpected reply %v", vals)
	}

	ttl := time.Duration(vals[2]) * time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	return int(vals[1]), vals[0] == 1, time.Now().Add(ttl), nil
}
