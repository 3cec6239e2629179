package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-health/copd-monitor/pkg/common/config"
)

func TestRedisOptionsFromHost(t *testing.T) {
	opts, err := RedisOptions(&config.Config{RedisHost: "cache", RedisPort: "6380", RedisPassword: "s3cret", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "s3cret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, redisIOTimeout, opts.ReadTimeout)
}

func TestRedisOptionsFromURL(t *testing.T) {
	opts, err := RedisOptions(&config.Config{RedisURL: "redis://:pw@redis.internal:6379/4", RedisHost: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 4, opts.DB)
	assert.Equal(t, redisDialTimeout, opts.DialTimeout)
}

func TestRedisOptionsRejectsBadURL(t *testing.T) {
	_, err := RedisOptions(&config.Config{RedisURL: "http://nope"})
	assert.Error(t, err)
}
