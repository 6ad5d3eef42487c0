// Package cache provides an optional Redis read-through cache for computed
// availability. A nil client disables caching entirely.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache wraps a Redis client with JSON serialization. The zero value (nil
// client) is a no-op cache, so callers never branch on whether Redis is
// configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

func New(client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// SlotsKey builds the cache key for one studio/date/duration computation.
func SlotsKey(studioID, date string, durationMinutes int) string {
	return fmt.Sprintf("agenda:slots:%s:%s:%d", studioID, date, durationMinutes)
}

// Read loads a cached value into out, reporting whether it was present.
func (c *Cache) Read(ctx context.Context, key string, out any) bool {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

// Write stores a value under key. Failures are logged and swallowed; the
// cache is an optimization, never a dependency.
func (c *Cache) Write(ctx context.Context, key string, val any) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// InvalidateDay drops every cached computation for a studio and date,
// whatever duration it was computed for. Called when a booking, schedule or
// block for that day changes.
func (c *Cache) InvalidateDay(ctx context.Context, studioID, date string) {
	c.invalidate(ctx, fmt.Sprintf("agenda:slots:%s:%s:*", studioID, date))
}

// InvalidateStudio drops all cached computations for a studio. Called on
// schedule or service changes, which affect every date.
func (c *Cache) InvalidateStudio(ctx context.Context, studioID string) {
	c.invalidate(ctx, fmt.Sprintf("agenda:slots:%s:*", studioID))
}

func (c *Cache) invalidate(ctx context.Context, pattern string) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil && c.logger != nil {
			c.logger.Warn().Err(err).Str("key", iter.Val()).Msg("cache invalidation failed")
		}
	}
	if err := iter.Err(); err != nil && c.logger != nil {
		c.logger.Warn().Err(err).Str("pattern", pattern).Msg("cache scan failed")
	}
}
