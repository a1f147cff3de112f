package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"habibeat/backend/internal/domain"
)

const keyPrefix = "habibeat:closing:"

type RedisClosingCache struct {
	client *redis.Client
}

func NewRedisClosingCache(client *redis.Client) *RedisClosingCache {
	return &RedisClosingCache{client: client}
}

func (c *RedisClosingCache) Get(ctx context.Context, period domain.Period) (domain.Closing, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+period.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var closing domain.Closing
	if err := json.Unmarshal(val, &closing); err != nil {
		return nil, false, err
	}
	return closing, true, nil
}

func (c *RedisClosingCache) Set(ctx context.Context, period domain.Period, value domain.Closing, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+period.String(), payload, ttl).Err()
}
