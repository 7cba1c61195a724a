package dashcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const summaryKey = "dashboard:summary"

// Cache holds the last computed summary for a short TTL. A nil client turns
// every method into a pass-through.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Summary returns the cached summary or computes and stores a fresh one.
// Redis failures fall back to computing.
func (c *Cache) Summary(ctx context.Context, compute func(context.Context) (Summary, error)) (Summary, error) {
	if !c.enabled() {
		return compute(ctx)
	}

	raw, err := c.client.Get(ctx, summaryKey).Bytes()
	switch {
	case err == nil:
		var cached Summary
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
		c.logger.Warn("discarding corrupt dashboard cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("dashboard cache read failed", zap.Error(err))
	}

	summary, err := compute(ctx)
	if err != nil {
		return Summary{}, err
	}
	payload, err := json.Marshal(summary)
	if err == nil {
		err = c.client.Set(ctx, summaryKey, payload, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return summary, nil
}

// Invalidate drops the cached summary after a write.
func (c *Cache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	if err := c.client.Del(ctx, summaryKey).Err(); err != nil {
		c.logger.Warn("dashboard cache invalidate failed", zap.Error(err))
	}
}
