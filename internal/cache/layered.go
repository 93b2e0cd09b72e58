package cache

import (
	"errors"
	"time"

	"github.com/ppiankov/docscrape/internal/model"
)

// LayeredStore reads through memory then disk and writes to both
type LayeredStore struct {
	memory Store
	disk   Store
}

// NewLayeredStore combines a memory layer and a disk layer
func NewLayeredStore(memory, disk Store) *LayeredStore {
	return &LayeredStore{memory: memory, disk: disk}
}

// FromConfig builds the page cache described by cfg, or nil when caching is off
func FromConfig(cfg model.CacheConfig) *PageCache {
	if !cfg.Enabled {
		return nil
	}
	memory := NewMemoryStore(cfg.MemoryTTL, 10*time.Minute)
	if cfg.Dir == "" {
		return NewPageCache(memory, 0)
	}
	return NewPageCache(NewLayeredStore(memory, NewDiskStore(cfg.Dir, cfg.DiskTTL)), 0)
}

func (c *LayeredStore) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}
	if val, found := c.disk.Get(key); found {
		// Promote with the memory layer's default expiry
		_ = c.memory.Set(key, val, 0)
		return val, true
	}
	return nil, false
}

func (c *LayeredStore) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

func (c *LayeredStore) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

func (c *LayeredStore) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}
