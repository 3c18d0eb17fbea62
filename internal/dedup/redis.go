package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a key stays in the Redis seen-set.
const DefaultTTL = 7 * 24 * time.Hour

// RedisCache keeps recently stored dedup keys in Redis, shared by every
// process that ingests into the same store.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisClient connects to Redis at addr and checks the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// TTLFor bounds the cache TTL by the store's retention period, so the
// cache never vouches for a key the store has already pruned. A zero
// retention keeps DefaultTTL.
func TTLFor(retention time.Duration) time.Duration {
	if retention > 0 && retention < DefaultTTL {
		return retention
	}
	return DefaultTTL
}

// NewRedisCache creates a RedisCache. Keys are stored as prefix+key.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(dedupKey string) string {
	return c.prefix + dedupKey
}

// Seen reports whether the key was remembered.
func (c *RedisCache) Seen(ctx context.Context, dedupKey string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(dedupKey)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Remember stores keys with the cache TTL in one round trip.
func (c *RedisCache) Remember(ctx context.Context, dedupKeys ...string) error {
	if len(dedupKeys) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range dedupKeys {
			p.Set(ctx, c.key(k), 1, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
