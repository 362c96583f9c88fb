package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProfileCache stores serialized public-profile snapshots under user:<id>.
// Callers treat every returned error as a cache miss (reads) or a no-op
// (writes/invalidations); the read path must never depend on cache health.
type ProfileCache interface {
	Get(ctx context.Context, userID string, dest any) (bool, error)
	Set(ctx context.Context, userID string, value any) error
	Delete(ctx context.Context, userID string) error
}

type RedisProfileCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisProfileCache(rdb *redis.Client, ttl time.Duration) *RedisProfileCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisProfileCache{rdb: rdb, ttl: ttl}
}

func cacheKey(userID string) string {
	return "user:" + userID
}

// Get unmarshals the cached snapshot into dest. A missing key is a clean
// miss (false, nil); any other failure is reported for the caller to log.
func (c *RedisProfileCache) Get(ctx context.Context, userID string, dest any) (bool, error) {
	b, err := c.rdb.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, userID string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey(userID), b, c.ttl).Err()
}

func (c *RedisProfileCache) Delete(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, cacheKey(userID)).Err()
}

var _ ProfileCache = (*RedisProfileCache)(nil)
