package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

var ErrCacheMiss = errors.New("weather cache miss")

type Cache interface {
	Get(ctx context.Context, key string) (models.WeatherData, error)
	Set(ctx context.Context, key string, data models.WeatherData, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "weather:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) (models.WeatherData, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.WeatherData{}, ErrCacheMiss
	}
	if err != nil {
		return models.WeatherData{}, fmt.Errorf("redis get %s: %w", key, err)
	}

	var data models.WeatherData
	if err := json.Unmarshal(raw, &data); err != nil {
		return models.WeatherData{}, fmt.Errorf("decode cached weather: %w", err)
	}
	return data, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, data models.WeatherData, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, raw, ttl).Err()
}
