package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/imwg-risk-calculator/internal/domain"
)

// maxTrackedClients bounds the number of per-client limiters kept in memory.
const maxTrackedClients = 10000

// RateLimiter hands out a token-bucket limiter per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter allowing rps requests per second with the given burst.
func NewRateLimiter(rps float64, burst int) (*RateLimiter, error) {
	cache, err := lru.New(maxTrackedClients)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		limiters: cache,
		limit:    rate.Limit(rps),
		burst:    burst,
	}, nil
}

// Allow reports whether the client may make a request now.
func (r *RateLimiter) Allow(client string) bool {
	r.mu.Lock()
	limiter, ok := r.limiters.Get(client)
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.limiters.Add(client, limiter)
	}
	r.mu.Unlock()
	return limiter.(*rate.Limiter).Allow()
}

// RateLimit rejects clients exceeding their request budget with 429.
// It is a no-op when rate limiting is disabled.
func RateLimit(config domain.RateLimitConfig, logger *logrus.Logger) (gin.HandlerFunc, error) {
	if !config.Enabled {
		return func(c *gin.Context) { c.Next() }, nil
	}
	limiter, err := NewRateLimiter(config.RequestsPerSecond, config.Burst)
	if err != nil {
		return nil, err
	}

	return func(c *gin.Context) {
		client := c.ClientIP()
		if !limiter.Allow(client) {
			logger.WithFields(logrus.Fields{
				"client_ip":      client,
				"correlation_id": c.GetString(CorrelationIDKey),
			}).Warn("Rate limit exceeded")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}, nil
}
