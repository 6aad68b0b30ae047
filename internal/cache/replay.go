// Package cache holds Redis backed caches used by the reservation engine.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayCache maps (user, idempotency key) to the reservation id it
// produced. Entries expire after ttl; the ledger stays the durable record.
type ReplayCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewReplayCache returns a cache that keeps entries for ttl.
func NewReplayCache(rdb *redis.Client, ttl time.Duration) *ReplayCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReplayCache{rdb: rdb, ttl: ttl, prefix: "idem"}
}

func (c *ReplayCache) key(userID uint64, key string) string {
	return fmt.Sprintf("%s:%d:%s", c.prefix, userID, key)
}

// Get returns the reservation id stored for the pair, if any.
func (c *ReplayCache) Get(ctx context.Context, userID uint64, key string) (string, bool, error) {
	id, err := c.rdb.Get(ctx, c.key(userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Put records the pair. An existing entry is never overwritten, so the first
// reservation made under a key stays the answer for every retry.
func (c *ReplayCache) Put(ctx context.Context, userID uint64, key, reservationID string) error {
	return c.rdb.SetNX(ctx, c.key(userID, key), reservationID, c.ttl).Err()
}
