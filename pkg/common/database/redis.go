package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sentinel-health/copd-monitor/pkg/common/config"
	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// Cache reads sit on the weather request path, so the client fails fast and
// lets the caller fall through to the provider.
const (
	redisDialTimeout = 2 * time.Second
	redisIOTimeout   = 500 * time.Millisecond
)

// RedisOptions builds client options from REDIS_URL when set and from the
// host/port settings otherwise.
func RedisOptions(cfg *config.Config) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.RedisURL != "" {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}

	opts.DialTimeout = redisDialTimeout
	opts.ReadTimeout = redisIOTimeout
	opts.WriteTimeout = redisIOTimeout
	opts.MaxRetries = 1
	return opts, nil
}

// GetRedis returns the shared client backing the weather cache. A failed ping
// is logged but not fatal; cache misses fall through to the provider.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		cfg := config.Load()
		opts, err := RedisOptions(cfg)
		if err != nil {
			logger.Log.WithError(err).Warn("Invalid Redis URL, using host settings")
			cfg.RedisURL = ""
			opts, _ = RedisOptions(cfg)
		}
		redisClient = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Log.WithError(err).WithField("addr", opts.Addr).Warn("Redis unreachable, weather cache will miss")
		} else {
			logger.Log.WithField("addr", opts.Addr).Info("Connected to Redis")
		}
	})

	return redisClient
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
