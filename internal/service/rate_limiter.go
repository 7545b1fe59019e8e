package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pronote-app/messagerie-backend/internal/domain"
	"github.com/pronote-app/messagerie-backend/pkg/logger"
)

// RateLimitStore counts hits under a key. Hit records the attempt and
// returns the total attempts in the current window plus the time left until
// the window resets.
type RateLimitStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (attempts int64, remaining time.Duration, err error)
}

// RedisRateLimitStore keeps counters in Redis. The first hit under a key
// creates the counter with the window as its TTL; attempts accumulate until
// the key expires. This is a fixed window with delayed reset, not a true
// sliding window: a burst of up to twice the limit across a window boundary
// is accepted behavior.
type RedisRateLimitStore struct {
	client *redis.Client
}

// NewRedisRateLimitStore creates a Redis-backed store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

func (s *RedisRateLimitStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	attempts, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if attempts == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return attempts, window, err
		}
		return attempts, window, nil
	}
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		// Counter without expiry (lost EXPIRE); re-arm it.
		s.client.Expire(ctx, key, window)
		ttl = window
	}
	return attempts, ttl, nil
}

type memoryCounter struct {
	attempts int64
	resetAt  time.Time
}

// MemoryRateLimitStore is the in-process fallback used when Redis is absent
// (and by tests). Expired counters are purged lazily on next use.
type MemoryRateLimitStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
}

// NewMemoryRateLimitStore creates an in-memory store.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{counters: make(map[string]*memoryCounter)}
}

func (s *MemoryRateLimitStore) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c, ok := s.counters[key]
	if !ok || now.After(c.resetAt) {
		c = &memoryCounter{resetAt: now.Add(window)}
		s.counters[key] = c
	}
	c.attempts++
	return c.attempts, c.resetAt.Sub(now), nil
}

// RateLimitResult is the outcome of a rate-limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// RateLimiter throttles repeated actions per identity and action. Any store
// failure degrades open: availability wins over strict throttling for this
// auxiliary control.
type RateLimiter struct {
	store RateLimitStore
}

// NewRateLimiter creates a RateLimiter over the given store.
func NewRateLimiter(store RateLimitStore) *RateLimiter {
	return &RateLimiter{store: store}
}

// Check records an attempt under key and decides whether it is allowed.
func (l *RateLimiter) Check(ctx context.Context, key string, maxAttempts int, window time.Duration) RateLimitResult {
	attempts, remaining, err := l.store.Hit(ctx, key, window)
	if err != nil {
		logger.GetLogger().Warn().Err(err).Str("key", key).Msg("rate limit store failure, allowing request")
		return RateLimitResult{Allowed: true, Remaining: int64(maxAttempts)}
	}

	if attempts > int64(maxAttempts) {
		return RateLimitResult{Allowed: false, RetryAfter: remaining}
	}
	return RateLimitResult{Allowed: true, Remaining: int64(maxAttempts) - attempts}
}

// RateLimitKey builds the throttling key: authenticated identity when
// available, otherwise client IP plus a hash of the user agent.
func RateLimitKey(id *domain.Identity, clientIP, userAgent, action string) string {
	if id != nil {
		return fmt.Sprintf("ratelimit:%s:%s", action, id.Key())
	}
	h := fnv.New32a()
	h.Write([]byte(userAgent))
	return fmt.Sprintf("ratelimit:%s:ip:%s:%x", action, clientIP, h.Sum32())
}
