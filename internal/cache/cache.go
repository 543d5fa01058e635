package cache

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/imwg-risk-calculator/internal/domain"
)

// New builds the cache selected by config.Driver. It returns nil for the "none" driver.
// A Redis cache that cannot connect falls back to memory.
func New(config domain.CacheConfig, logger *logrus.Logger) (domain.AssessmentCache, error) {
	switch config.Driver {
	case domain.CacheDriverNone:
		return nil, nil
	case "", domain.CacheDriverMemory:
		return NewMemoryCache(config.MaxItems, config.DefaultTTL), nil
	case domain.CacheDriverRedis:
		c, err := NewRedisCache(config, logger)
		if err != nil {
			logger.WithError(err).Warn("Redis cache unavailable, falling back to in-memory cache")
			return NewMemoryCache(config.MaxItems, config.DefaultTTL), nil
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", config.Driver)
	}
}
