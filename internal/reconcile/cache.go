package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "reconcile:version"

// ReportCache wraps Redis based report caching with versioning controls.
// Every write to orders, receipt notes or return notes bumps the version,
// invalidating all cached reports at once.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache instantiates the cache helper.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// buildKey composes the cache key with the current version.
func (c *ReportCache) buildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchReport loads a cached report or populates it using the loader.
func (c *ReportCache) FetchReport(ctx context.Context, scope string, id int64, loader func(context.Context) (Report, error)) (Report, error) {
	if loader == nil {
		return Report{}, errors.New("reconcile: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key, err := c.buildKey(ctx, "reconcile", "report", scope, fmt.Sprintf("%d", id))
	if err != nil {
		return loader(ctx)
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached Report
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}
	report, err := loader(ctx)
	if err != nil {
		return Report{}, err
	}
	encoded, err := json.Marshal(report)
	if err != nil {
		return report, nil
	}
	_ = c.client.Set(ctx, key, encoded, c.ttl).Err()
	return report, nil
}

// Bump invalidates every cached report by incrementing the version.
func (c *ReportCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
