package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps each credential entry in a hash with customer_id and hash_sum fields.
type RedisCache struct {
	rdb redis.Cmdable
}

func NewRedisCache(rdb redis.Cmdable) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (CachedCredential, bool, error) {
	fields, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return CachedCredential{}, false, err
	}
	if len(fields) == 0 {
		return CachedCredential{}, false, nil
	}
	id, err := strconv.ParseInt(fields["customer_id"], 10, 64)
	if err != nil {
		return CachedCredential{}, false, fmt.Errorf("credential cache entry: %w", err)
	}
	return CachedCredential{CustomerID: id, HashSum: fields["hash_sum"]}, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, entry CachedCredential, ttl time.Duration) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "customer_id", entry.CustomerID, "hash_sum", entry.HashSum)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}
