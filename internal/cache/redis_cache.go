package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"techsolutions/backend/internal/domain"
)

// indexKey is a set of every live entry key, so Purge needs no SCAN.
const indexKey = keyPrefix + "index"

type RedisCatalogCache struct {
	client *redis.Client
}

func NewRedisCatalogCache(addr string, password string, db int) *RedisCatalogCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCatalogCache{client: client}
}

func (c *RedisCatalogCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCatalogCache) Close() error {
	return c.client.Close()
}

func (c *RedisCatalogCache) Get(ctx context.Context, query string) ([]domain.SellableProduct, bool, error) {
	val, err := c.client.Get(ctx, entryKey(query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var products []domain.SellableProduct
	if err := json.Unmarshal(val, &products); err != nil {
		return nil, false, err
	}
	return products, true, nil
}

func (c *RedisCatalogCache) Set(ctx context.Context, query string, value []domain.SellableProduct, ttl time.Duration) error {
	if value == nil {
		value = []domain.SellableProduct{}
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	key := entryKey(query)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, payload, ttl)
		pipe.SAdd(ctx, indexKey, key)
		return nil
	})
	return err
}

func (c *RedisCatalogCache) Purge(ctx context.Context) error {
	keys, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return err
	}
	return c.client.Del(ctx, append(keys, indexKey)...).Err()
}
