// Package cache provides read-through caches of assessment snapshots.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/imwg-risk-calculator/internal/domain"
)

// Defaults applied when the configuration leaves a value unset.
const (
	DefaultMaxItems = 1000
	DefaultTTL      = 5 * time.Minute
)

// MemoryCache is an in-process expirable LRU of assessments. Values are cloned on
// the way in and out so callers never share a cached snapshot.
type MemoryCache struct {
	lru *expirable.LRU[string, *domain.Assessment]
}

// NewMemoryCache creates a cache holding at most maxItems entries for ttl each.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, *domain.Assessment](maxItems, nil, ttl),
	}
}

// Get returns a copy of the cached assessment.
func (c *MemoryCache) Get(_ context.Context, id string) (*domain.Assessment, bool) {
	a, ok := c.lru.Get(id)
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// Set stores a copy of the assessment.
func (c *MemoryCache) Set(_ context.Context, a *domain.Assessment) {
	if a == nil {
		return
	}
	c.lru.Add(a.ID, a.Clone())
}

// Invalidate drops the entry for id.
func (c *MemoryCache) Invalidate(_ context.Context, id string) {
	c.lru.Remove(id)
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}
