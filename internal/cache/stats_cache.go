// Package cache provides the Redis-backed cache for assembled audit stats
// reports. The cache is strictly an accelerator: every code path works, just
// slower, when Redis is down or not configured.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scholaris/scholaris/internal/audit"
)

// StatsCache stores serialized stats reports in Redis with a per-key TTL.
// It implements audit.StatsCache.
type StatsCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewStatsCache wraps an existing Redis client. keyPrefix namespaces this
// deployment's keys so several environments can share one Redis.
func NewStatsCache(client *redis.Client, keyPrefix string) *StatsCache {
	return &StatsCache{client: client, keyPrefix: keyPrefix}
}

// GetStats returns the cached report for key, or nil on a miss.
func (c *StatsCache) GetStats(ctx context.Context, key string) (*audit.StatsReport, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading stats cache: %w", err)
	}

	var report audit.StatsReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decoding cached stats report: %w", err)
	}
	return &report, nil
}

// SetStats stores the report under key for at most ttl.
func (c *StatsCache) SetStats(ctx context.Context, key string, report *audit.StatsReport, ttl time.Duration) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding stats report: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("writing stats cache: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *StatsCache) Close() error {
	return c.client.Close()
}
