package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imwg-risk-calculator/internal/domain"
)

func unreachableRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { client.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return newRedisCache(client, time.Minute, logger)
}

func TestRedisCache_FailuresAreMisses(t *testing.T) {
	c := unreachableRedisCache(t)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		c.Set(ctx, testAssessment("a-1"))
		c.Invalidate(ctx, "a-1")
	})

	got, ok := c.Get(ctx, "a-1")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestRedisCache_BreakerOpensOnRepeatedFailures(t *testing.T) {
	c := unreachableRedisCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, ok := c.Get(ctx, "a-1")
		require.False(t, ok)
	}

	assert.Equal(t, gobreaker.StateOpen, c.State())

	start := time.Now()
	_, ok := c.Get(ctx, "a-1")
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "open breaker short-circuits Redis")
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache(domain.CacheConfig{RedisURL: "not-a-url://"}, logrus.New())
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	none, err := New(domain.CacheConfig{Driver: domain.CacheDriverNone}, logger)
	require.NoError(t, err)
	assert.Nil(t, none)

	mem, err := New(domain.CacheConfig{Driver: domain.CacheDriverMemory, MaxItems: 5}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, mem)

	fallback, err := New(domain.CacheConfig{
		Driver:     domain.CacheDriverRedis,
		RedisURL:   "redis://127.0.0.1:1/0",
		MaxRetries: -1,
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, fallback)

	_, err = New(domain.CacheConfig{Driver: "memcached"}, logger)
	assert.Error(t, err)
}
