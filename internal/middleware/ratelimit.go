// ratelimit.go provides Gin middleware that enforces per-client rate limits,
// returning 429 responses when the configured requests-per-minute threshold is
// exceeded. The limiter backend is pluggable: a Redis-backed limiter gives one
// shared budget across replicas, with a per-process token bucket as the
// fallback when Redis is not configured.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often the in-memory limiter evicts idle clients
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
		BurstSize:         20,
		CleanupInterval:   5 * time.Minute,
	}
}

// Limiter decides whether a request from a client key may proceed. A limiter
// failure must never take the API down, so errors are resolved to "allow" by
// the middleware.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
	Limit() int
	Stop()
}

// ---------------------------------------------------------------------------
// Redis-backed limiter
// ---------------------------------------------------------------------------

// RedisLimiter enforces one shared budget across all server replicas using
// the GCRA implementation in redis_rate.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	rpm     int
}

// NewRedisLimiter creates a Redis-backed limiter on an existing client.
func NewRedisLimiter(client *redis.Client, config RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit: redis_rate.Limit{
			Rate:   config.RequestsPerMinute,
			Period: time.Minute,
			Burst:  config.BurstSize,
		},
		rpm: config.RequestsPerMinute,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	res, err := l.limiter.Allow(ctx, "ratelimit:"+key, l.limit)
	if err != nil {
		return false, 0, err
	}
	return res.Allowed > 0, res.Remaining, nil
}

func (l *RedisLimiter) Limit() int { return l.rpm }

func (l *RedisLimiter) Stop() {}

// ---------------------------------------------------------------------------
// In-memory limiter
// ---------------------------------------------------------------------------

// rateLimitEntry tracks the token bucket for a single client
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// MemoryLimiter implements a per-process token bucket. Budgets are per
// replica: with N replicas behind a balancer a client can spend up to N times
// the configured rate, which is acceptable for the fallback path.
type MemoryLimiter struct {
	config  RateLimitConfig
	entries map[string]*rateLimitEntry
	mu      sync.Mutex
	stopCh  chan struct{}
}

// NewMemoryLimiter creates an in-memory limiter with the given config.
func NewMemoryLimiter(config RateLimitConfig) *MemoryLimiter {
	ml := &MemoryLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
	}
	go ml.cleanup()
	return ml
}

// cleanup periodically evicts clients that have been idle long enough to have
// a full bucket anyway.
func (ml *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(ml.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ml.mu.Lock()
			now := time.Now()
			for key, entry := range ml.entries {
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(ml.entries, key)
				}
			}
			ml.mu.Unlock()
		case <-ml.stopCh:
			return
		}
	}
}

func (ml *MemoryLimiter) Allow(_ context.Context, key string) (bool, int, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := time.Now()
	entry, exists := ml.entries[key]
	if !exists {
		ml.entries[key] = &rateLimitEntry{
			tokens:     float64(ml.config.BurstSize) - 1,
			lastUpdate: now,
		}
		return true, ml.config.BurstSize - 1, nil
	}

	elapsed := now.Sub(entry.lastUpdate)
	tokensPerSecond := float64(ml.config.RequestsPerMinute) / 60.0
	entry.tokens = min(float64(ml.config.BurstSize), entry.tokens+elapsed.Seconds()*tokensPerSecond)
	entry.lastUpdate = now

	if entry.tokens >= 1 {
		entry.tokens--
		return true, int(entry.tokens), nil
	}
	return false, 0, nil
}

func (ml *MemoryLimiter) Limit() int { return ml.config.RequestsPerMinute }

// Stop stops the cleanup goroutine
func (ml *MemoryLimiter) Stop() {
	close(ml.stopCh)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// RateLimitMiddleware enforces the limiter per client key. Limiter backend
// failures fail open: a Redis outage slows nothing and blocks nobody.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		allowed, remaining, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}
		c.Next()
	}
}

// rateLimitKey buckets requests by client IP. The limiter runs before
// authentication so that the token endpoint and failed logins consume the same
// budget as everything else.
func rateLimitKey(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
