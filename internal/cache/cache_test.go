package cache

import (
	"context"
	"testing"

	"github.com/ewastehub/apiserver/config"
)

func TestNewWithoutAddrDisablesCache(t *testing.T) {
	if c := New(config.RedisConfig{}); c != nil {
		t.Fatal("expected nil cache without a redis address")
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *AnalyticsCache
	ctx := context.Background()

	if _, ok := c.Get(ctx); ok {
		t.Error("nil cache must report a miss")
	}
	c.Set(ctx, []byte("{}"))
	c.Invalidate(ctx)
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil cache: %v", err)
	}
}
