package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries in process memory with expiry
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates a memory store; expired entries are purged every cleanupInterval
func NewMemoryStore(defaultTTL, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{cache: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *MemoryStore) Get(key string) ([]byte, bool) {
	if val, found := c.cache.Get(key); found {
		if b, ok := val.([]byte); ok {
			return b, true
		}
	}
	return nil, false
}

// Set stores value; ttl 0 uses the default expiry
func (c *MemoryStore) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, value, ttl)
	return nil
}

func (c *MemoryStore) Delete(key string) error {
	c.cache.Delete(key)
	return nil
}

func (c *MemoryStore) Clear() error {
	c.cache.Flush()
	return nil
}

// Len returns the number of entries, including expired ones not yet purged
func (c *MemoryStore) Len() int {
	return c.cache.ItemCount()
}
