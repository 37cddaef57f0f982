package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a small read-through cache facade. Get returns "" on a miss so
// callers can fall back to the source of truth without error branching.
type Cache interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Key(parts ...any) string
}

type redisCache struct {
	client    *redis.Client
	namespace string
}

func NewRedisCache(rdb *redis.Client, namespace string) Cache {
	return &redisCache{client: rdb, namespace: namespace}
}

func (c *redisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *redisCache) Key(parts ...any) string {
	key := c.namespace
	for _, p := range parts {
		key = fmt.Sprintf("%s:%v", key, p)
	}
	return key
}
