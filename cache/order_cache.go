package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"fulfillment-service/models"
)

var ErrCacheMiss = errors.New("cache miss")

func NewRedisOrderCache(client *redis.Client, ttl time.Duration) *RedisOrderCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisOrderCache{client: client, baseTTL: ttl}
}

// RedisOrderCache holds fully loaded orders. Orders are immutable once
// completed, so entries only expire; nothing invalidates them.
type RedisOrderCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisOrderCache) Get(ctx context.Context, key string) (*models.Order, error) {
	data, err := r.client.Get(ctx, cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("unmarshal order failed: %w", err)
	}
	return &order, nil
}

// Set stores the order under every key given, with a jittered TTL so
// entries written together do not expire together.
func (r *RedisOrderCache) Set(ctx context.Context, order *models.Order, keys ...string) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order failed: %w", err)
	}

	jitter := time.Duration(rand.Int63n(int64(r.baseTTL/5) + 1))
	ttl := r.baseTTL + jitter

	pipe := r.client.Pipeline()
	for _, k := range keys {
		pipe.Set(ctx, cacheKey(k), data, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func cacheKey(key string) string {
	return "order:" + key
}
