package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amitsajwan/AgenticAiProperties/internal/repository"
)

const dedupePrefix = "webhook:seen:"

// RedisDeliveryCache implements DeliveryCache with TTL-bounded keys, so
// redelivered events can be skipped cheaply. Losing the cache only costs
// duplicate (idempotent) work.
type RedisDeliveryCache struct {
	client redis.UniversalClient
}

var _ repository.DeliveryCache = (*RedisDeliveryCache)(nil)

// NewRedisDeliveryCache constructs a Redis-backed delivery cache.
func NewRedisDeliveryCache(client redis.UniversalClient) *RedisDeliveryCache {
	return &RedisDeliveryCache{client: client}
}

// Seen reports whether the event key is currently recorded.
func (c *RedisDeliveryCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, dedupePrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return n > 0, nil
}

// MarkSeen records the event key for the TTL.
func (c *RedisDeliveryCache) MarkSeen(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Set(ctx, dedupePrefix+key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// EventKey derives a stable dedupe key for an event from its identifying
// parts.
func EventKey(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
