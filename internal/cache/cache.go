// Package cache provides an optional redis-backed cache for the
// analytics read path. A nil cache is valid and disables caching.
package cache

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/ewastehub/apiserver/config"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const analyticsKey = "ewaste:analytics"

// AnalyticsCache stores the serialized analytics response with a short
// TTL. All operations are best-effort: redis faults are logged and
// treated as cache misses so reads never fail because of the cache.
type AnalyticsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New constructs an AnalyticsCache from config, or nil when no redis
// address is configured.
func New(cfg config.RedisConfig) *AnalyticsCache {
	if cfg.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &AnalyticsCache{rdb: rdb, ttl: cfg.CacheTTL}
}

// Get returns the cached analytics payload, reporting false on a miss.
func (c *AnalyticsCache) Get(ctx context.Context) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	value, err := c.rdb.Get(ctx, analyticsKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn().Err(err).Msg("analytics cache read failed")
		}
		return nil, false
	}
	return value, true
}

// Set stores the analytics payload for the configured TTL.
func (c *AnalyticsCache) Set(ctx context.Context, payload []byte) {
	if c == nil {
		return
	}
	if err := c.rdb.Set(ctx, analyticsKey, payload, c.ttl).Err(); err != nil {
		logger.Warn().Err(err).Msg("analytics cache write failed")
	}
}

// Invalidate drops the cached payload. Called after item writes.
func (c *AnalyticsCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.rdb.Del(ctx, analyticsKey).Err(); err != nil {
		logger.Warn().Err(err).Msg("analytics cache invalidation failed")
	}
}

// Close releases the underlying redis connection.
func (c *AnalyticsCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
