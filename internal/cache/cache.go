package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Store is a byte-oriented key/value cache layer
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Page is a fetched document as the session stores it
type Page struct {
	URL       string    `json:"url"` // Final URL after redirects
	Status    int       `json:"status"`
	Body      []byte    `json:"body"`
	FetchedAt time.Time `json:"fetched_at"`
}

// PageCache stores fetched pages keyed by request address
type PageCache struct {
	store Store
	ttl   time.Duration
}

// NewPageCache wraps a store; ttl 0 uses the store's default
func NewPageCache(store Store, ttl time.Duration) *PageCache {
	return &PageCache{store: store, ttl: ttl}
}

// Load returns the cached page for an address
func (c *PageCache) Load(address string) (*Page, bool) {
	data, ok := c.store.Get(Key(address))
	if !ok {
		return nil, false
	}
	var p Page
	if err := json.Unmarshal(data, &p); err != nil {
		_ = c.store.Delete(Key(address))
		return nil, false
	}
	return &p, true
}

// Save stores a page under the address it was requested with
func (c *PageCache) Save(address string, p *Page) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.store.Set(Key(address), data, c.ttl)
}

// Key derives a cache key from an address
func Key(address string) string {
	hash := sha256.Sum256([]byte(address))
	return "docscrape:v1:" + hex.EncodeToString(hash[:])
}
