package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"roxtor/backend/internal/domain"
)

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

type RedisDraftCache struct {
	client *redis.Client
}

func NewRedisDraftCache(client *redis.Client) *RedisDraftCache {
	return &RedisDraftCache{client: client}
}

func (c *RedisDraftCache) Get(ctx context.Context, key string) (*domain.Draft, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var draft domain.Draft
	if err := json.Unmarshal([]byte(val), &draft); err != nil {
		return nil, false, err
	}
	return &draft, true, nil
}

func (c *RedisDraftCache) Set(ctx context.Context, key string, value *domain.Draft, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
