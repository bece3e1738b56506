// internal/navcache/cache.go
//
// Redis cache for the navigation payload.
//
// Context
// -------
// The nav document is read on every dashboard load and changes only on
// admin writes, so it caches well.  Lookups go redis-first; on a miss, a
// singleflight group collapses concurrent rebuilds into one database pass.
// A nil redis client degrades to build-every-time, which keeps the cache
// strictly optional.
//
// Admin handlers call Invalidate after any category, site, or setting
// write.  The TTL is a backstop for invalidations lost to redis restarts.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package navcache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/waypost/internal/metrics"
)

const (
	payloadKey = "waypost:nav:v1"
	payloadTTL = 10 * time.Minute
)

// Builder produces the serialized payload on a cache miss.
type Builder func(ctx context.Context) ([]byte, error)

// Cache wraps the redis client.  Zero value is unusable; construct with
// New.  rdb may be nil.
type Cache struct {
	rdb *redis.Client
	sfg singleflight.Group
}

// New returns a cache over rdb, which may be nil to disable caching.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Payload returns the cached document, rebuilding through build on a miss.
// Redis errors degrade to a rebuild rather than failing the request.
func (c *Cache) Payload(ctx context.Context, build Builder) ([]byte, error) {
	if c.rdb == nil {
		metrics.NavCacheHitsTotal.WithLabelValues("bypass").Inc()
		return build(ctx)
	}

	if b, err := c.rdb.Get(ctx, payloadKey).Bytes(); err == nil {
		metrics.NavCacheHitsTotal.WithLabelValues("hit").Inc()
		return b, nil
	} else if !errors.Is(err, redis.Nil) {
		zap.S().Warnw("nav cache get failed", "err", err)
	}
	metrics.NavCacheHitsTotal.WithLabelValues("miss").Inc()

	v, err, _ := c.sfg.Do(payloadKey, func() (any, error) {
		b, err := build(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.rdb.Set(ctx, payloadKey, b, payloadTTL).Err(); err != nil {
			zap.S().Warnw("nav cache set failed", "err", err)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate drops the cached document.  Best-effort; the TTL catches
// anything a flaky redis loses.
func (c *Cache) Invalidate(ctx context.Context) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, payloadKey).Err(); err != nil {
		zap.S().Warnw("nav cache invalidate failed", "err", err)
	}
}
