package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/imwg-risk-calculator/internal/domain"
)

const keyPrefix = "imwg:assessment:"

// RedisCache stores assessment snapshots in Redis behind a circuit breaker.
// Every Redis failure degrades to a cache miss.
type RedisCache struct {
	redis   *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	logger  *logrus.Logger
}

// NewRedisCache connects to the Redis server named by config.RedisURL.
func NewRedisCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries != 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisCache(client, config.DefaultTTL, logger), nil
}

func newRedisCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RedisCache{
		redis:   client,
		breaker: breaker,
		ttl:     ttl,
		logger:  logger,
	}
}

// Get returns the cached assessment, or a miss when absent, corrupt or unreachable.
func (c *RedisCache) Get(ctx context.Context, id string) (*domain.Assessment, bool) {
	key := keyPrefix + id

	val, err := c.breaker.Execute(func() (interface{}, error) {
		b, err := c.redis.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		c.logger.WithError(err).WithField("assessment_id", id).Debug("Redis cache get failed")
		return nil, false
	}
	if val == nil {
		return nil, false
	}

	var a domain.Assessment
	if err := json.Unmarshal(val.([]byte), &a); err != nil {
		c.Invalidate(ctx, id)
		return nil, false
	}
	return &a, true
}

// Set caches the assessment for the configured TTL.
func (c *RedisCache) Set(ctx context.Context, a *domain.Assessment) {
	if a == nil {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		c.logger.WithError(err).WithField("assessment_id", a.ID).Warn("Failed to encode assessment for cache")
		return
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Set(ctx, keyPrefix+a.ID, data, c.ttl).Err()
	})
	if err != nil {
		c.logger.WithError(err).WithField("assessment_id", a.ID).Debug("Redis cache set failed")
	}
}

// Invalidate removes the cached assessment.
func (c *RedisCache) Invalidate(ctx context.Context, id string) {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Del(ctx, keyPrefix+id).Err()
	})
	if err != nil {
		c.logger.WithError(err).WithField("assessment_id", id).Debug("Redis cache invalidate failed")
	}
}

// State reports the circuit breaker state.
func (c *RedisCache) State() gobreaker.State {
	return c.breaker.State()
}

// Ping checks if Redis connection is alive
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
