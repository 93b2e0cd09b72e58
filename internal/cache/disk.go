package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskStore persists entries as one JSON file per key
type DiskStore struct {
	dir string
	ttl time.Duration
}

// NewDiskStore creates a disk store rooted at dir
func NewDiskStore(dir string, ttl time.Duration) *DiskStore {
	return &DiskStore{dir: dir, ttl: ttl}
}

type diskEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Get returns a live entry; expired files are removed
func (c *DiskStore) Get(key string) ([]byte, bool) {
	path := c.path(key)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry diskEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		_ = os.Remove(path)
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false
	}
	return entry.Data, true
}

// Set writes an entry through a temp file so readers never see a partial write
func (c *DiskStore) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	raw, err := json.Marshal(diskEntry{Data: value, ExpiresAt: time.Now().Add(ttl)})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Delete removes an entry; a missing entry is not an error
func (c *DiskStore) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear removes the whole cache directory
func (c *DiskStore) Clear() error {
	return os.RemoveAll(c.dir)
}

var keyReplacer = strings.NewReplacer(":", "_", "/", "_", `\`, "_")

// path shards entries by the first two hex digits of the key hash
func (c *DiskStore) path(key string) string {
	name := keyReplacer.Replace(key)
	shard := "00"
	if i := len(name) - 64; i >= 0 {
		shard = name[i : i+2]
	}
	return filepath.Join(c.dir, shard, name+".json")
}
