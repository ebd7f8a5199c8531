// Package cache keeps the recent report window in Redis so a burst of
// submissions does not hammer the database. A nil *Cache is valid and
// means caching is disabled.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/redis/go-redis/v9"

	"civiceye/models"
)

// Cache is a read-through cache for recent reports.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New opens a Redis-backed cache. Returns nil when no address is configured.
func New(addr, password string, ttl time.Duration) *Cache {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(limit int) string {
	return fmt.Sprintf("civiceye:recent:%d", limit)
}

// RecentReports returns the cached recent window. The second return value
// reports whether the cache held an entry; any Redis failure counts as a miss.
func (c *Cache) RecentReports(ctx context.Context, limit int) ([]models.Report, bool) {
	if c == nil {
		return nil, false
	}

	value, err := c.client.Get(ctx, c.key(limit)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.WithError(err).Warn("failed to read recent reports from cache")
		return nil, false
	}

	var reports []models.Report
	if err := json.Unmarshal([]byte(value), &reports); err != nil {
		log.WithError(err).Warn("failed to decode cached recent reports")
		return nil, false
	}
	return reports, true
}

// StoreRecent caches the recent window for the configured TTL.
func (c *Cache) StoreRecent(ctx context.Context, limit int, reports []models.Report) {
	if c == nil {
		return
	}

	payload, err := json.Marshal(reports)
	if err != nil {
		log.WithError(err).Warn("failed to encode recent reports for cache")
		return
	}
	if err := c.client.Set(ctx, c.key(limit), payload, c.ttl).Err(); err != nil {
		log.WithError(err).Warn("failed to cache recent reports")
	}
}

// Invalidate drops the cached window after a new report is stored.
func (c *Cache) Invalidate(ctx context.Context, limit int) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, c.key(limit)).Err(); err != nil {
		log.WithError(err).Warn("failed to invalidate recent report cache")
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
