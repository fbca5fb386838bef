// Package cache remembers positive existence answers. Teams and member emails are
// never deleted, so a "taken" answer cannot go stale; "free" answers are never cached.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const DefaultCleanupInterval = 30 * time.Minute

type Existence interface {
	Has(key string) bool
	Mark(keys ...string)
}

type inMemoryExistence struct {
	cache *gocache.Cache
}

func NewInMemoryExistence(ttl, cleanupInterval time.Duration) Existence {
	return &inMemoryExistence{
		cache: gocache.New(ttl, cleanupInterval),
	}
}

func (c *inMemoryExistence) Has(key string) bool {
	_, found := c.cache.Get(key)
	return found
}

func (c *inMemoryExistence) Mark(keys ...string) {
	for _, key := range keys {
		c.cache.SetDefault(key, struct{}{})
	}
}

type noopExistence struct{}

func NewNoopExistence() Existence {
	return noopExistence{}
}

func (noopExistence) Has(string) bool { return false }
func (noopExistence) Mark(...string)  {}

func TeamKey(lowerName string) string {
	return "team:" + lowerName
}

func EmailKey(email string) string {
	return "email:" + email
}
