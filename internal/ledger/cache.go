package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ReportCache caches rendered report payloads in redis, keyed by a
// per-business generation counter so that posting activity invalidates every
// cached report for that business at once. Concurrent builds of the same
// report are collapsed through singleflight.
type ReportCache struct {
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewReportCache wraps the redis client. A nil client disables caching and
// every Cached call falls through to the builder.
func NewReportCache(rdb *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{rdb: rdb, ttl: ttl}
}

func (c *ReportCache) generation(ctx context.Context, businessID int64) int64 {
	gen, err := c.rdb.Get(ctx, fmt.Sprintf("reports:gen:%d", businessID)).Int64()
	if err != nil {
		return 0
	}
	return gen
}

// Bump invalidates all cached reports of one business. Safe to call with a
// disabled cache.
func (c *ReportCache) Bump(ctx context.Context, businessID int64) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Incr(ctx, fmt.Sprintf("reports:gen:%d", businessID)).Err()
}

// Cached returns the cached JSON payload for key, building and storing it on
// a miss. Redis read/write failures degrade to an uncached build.
func (c *ReportCache) Cached(ctx context.Context, businessID int64, key string, build func(context.Context) (any, error)) ([]byte, error) {
	if c == nil || c.rdb == nil {
		report, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(report)
	}
	full := fmt.Sprintf("reports:%d:%d:%s", businessID, c.generation(ctx, businessID), key)
	if payload, err := c.rdb.Get(ctx, full).Bytes(); err == nil {
		return payload, nil
	}
	payload, err, _ := c.group.Do(full, func() (any, error) {
		report, err := build(ctx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(report)
		if err != nil {
			return nil, err
		}
		_ = c.rdb.Set(ctx, full, encoded, c.ttl).Err()
		return encoded, nil
	})
	if err != nil {
		return nil, err
	}
	return payload.([]byte), nil
}
