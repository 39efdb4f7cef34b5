package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig controls the global request budget and the per-IP intake
// submission limit. When a redis client is supplied the intake counters are
// shared across nodes; otherwise each process keeps its own buckets.
type RateLimitConfig struct {
	GlobalRPS    float64
	GlobalBurst  int
	IntakeLimit  int
	IntakeWindow time.Duration
	Redis        redis.UniversalClient
}

type rateLimiter struct {
	global        *tokenBucket
	intakeLimit   int
	intakeWindow  time.Duration
	intakeMu      sync.Mutex
	intakeBuckets map[string]*ipLimiter
	store         intakeStore
}

type ipLimiter struct {
	bucket   *tokenBucket
	lastSeen time.Time
}

type intakeStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		intakeLimit:   cfg.IntakeLimit,
		intakeWindow:  cfg.IntakeWindow,
		intakeBuckets: make(map[string]*ipLimiter),
	}
	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = int(cfg.GlobalRPS)
			if burst < 1 {
				burst = 1
			}
		}
		rl.global = newTokenBucket(cfg.GlobalRPS, burst)
	}
	if rl.intakeWindow <= 0 {
		rl.intakeWindow = time.Minute
	}
	if cfg.Redis != nil && rl.intakeLimit > 0 {
		rl.store = &redisIntakeStore{client: cfg.Redis}
	}
	return rl
}

func (r *rateLimiter) AllowRequest() bool {
	if r == nil || r.global == nil {
		return true
	}
	return r.global.Allow()
}

func (r *rateLimiter) AllowIntake(ctx context.Context, key string) (bool, time.Duration, error) {
	if r == nil || r.intakeLimit <= 0 {
		return true, 0, nil
	}
	if r.store != nil {
		return r.store.Allow(ctx, fmt.Sprintf("hearingvault:intake:%s", key), r.intakeLimit, r.intakeWindow)
	}
	if key == "" {
		key = "unknown"
	}
	r.intakeMu.Lock()
	bucket, exists := r.intakeBuckets[key]
	if !exists {
		rate := float64(r.intakeLimit) / r.intakeWindow.Seconds()
		if rate <= 0 {
			rate = 1 / r.intakeWindow.Seconds()
		}
		bucket = &ipLimiter{bucket: newTokenBucket(rate, r.intakeLimit)}
		r.intakeBuckets[key] = bucket
	}
	bucket.lastSeen = time.Now()
	r.cleanupLocked()
	r.intakeMu.Unlock()

	if bucket.bucket.Allow() {
		return true, 0, nil
	}
	return false, time.Second, nil
}

func (r *rateLimiter) cleanupLocked() {
	if len(r.intakeBuckets) == 0 {
		return
	}
	cutoff := time.Now().Add(-2 * r.intakeWindow)
	for key, bucket := range r.intakeBuckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(r.intakeBuckets, key)
		}
	}
}

// redisIntakeStore counts submissions per key in a rolling window shared by
// every node.
type redisIntakeStore struct {
	client redis.UniversalClient
}

func (s *redisIntakeStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("increment intake counter: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return false, 0, fmt.Errorf("set intake counter expiry: %w", err)
		}
	}
	if count <= int64(limit) {
		return true, 0, nil
	}
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("read intake counter ttl: %w", err)
	}
	if ttl < 0 {
		return false, window, nil
	}
	return false, ttl, nil
}

type tokenBucket struct {
	mu        sync.Mutex
	rate      float64
	capacity  float64
	tokens    float64
	lastCheck time.Time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	now := time.Now()
	return &tokenBucket{
		rate:      rate,
		capacity:  float64(burst),
		tokens:    float64(burst),
		lastCheck: now,
	}
}

func (tb *tokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(tb.lastCheck).Seconds()
	tb.lastCheck = now
	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	if tb.tokens < 1 {
		return false
	}
	tb.tokens -= 1
	return true
}
