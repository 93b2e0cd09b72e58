package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/docscrape/internal/model"
)

func TestKey(t *testing.T) {
	a := Key("https://example.org/a")
	if !strings.HasPrefix(a, "docscrape:v1:") {
		t.Errorf("key %q lacks prefix", a)
	}
	if a == Key("https://example.org/b") {
		t.Error("distinct addresses share a key")
	}
	if a != Key("https://example.org/a") {
		t.Error("key is not stable")
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(time.Minute, time.Minute)
	if err := s.Set("k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if got, ok := s.Get("k"); !ok || string(got) != "v" {
		t.Errorf("Get = %q, %v", got, ok)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}

	_ = s.Set("short", []byte("x"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := s.Get("short"); ok {
		t.Error("expired entry still readable")
	}

	_ = s.Clear()
	if _, ok := s.Get("k"); ok {
		t.Error("entry survived Clear")
	}
}

func TestDiskStore(t *testing.T) {
	dir := t.TempDir()
	s := NewDiskStore(dir, time.Hour)
	key := Key("https://example.org/")

	if err := s.Set(key, []byte("<html></html>"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := s.Get(key)
	if !ok || !bytes.Equal(got, []byte("<html></html>")) {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*", "*.json"))
	if len(matches) != 1 {
		t.Errorf("expected one sharded entry file, got %v", matches)
	}
	if strings.Contains(filepath.Base(matches[0]), ":") {
		t.Errorf("entry file name %q contains ':'", matches[0])
	}

	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(key); err != nil {
		t.Errorf("second Delete: %v", err)
	}
	if _, ok := s.Get(key); ok {
		t.Error("deleted entry still readable")
	}
}

func TestDiskStore_Expired(t *testing.T) {
	s := NewDiskStore(t.TempDir(), time.Hour)
	key := Key("https://example.org/old")
	_ = s.Set(key, []byte("x"), time.Nanosecond)
	time.Sleep(time.Millisecond)

	if _, ok := s.Get(key); ok {
		t.Error("expired entry still readable")
	}
	if _, err := os.Stat(s.path(key)); !os.IsNotExist(err) {
		t.Error("expired entry file not removed")
	}
}

func TestLayeredStore_PromotesFromDisk(t *testing.T) {
	memory := NewMemoryStore(time.Minute, time.Minute)
	disk := NewDiskStore(t.TempDir(), time.Hour)
	_ = disk.Set("k", []byte("v"), 0)

	s := NewLayeredStore(memory, disk)
	if got, ok := s.Get("k"); !ok || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if _, ok := memory.Get("k"); !ok {
		t.Error("disk hit was not promoted to memory")
	}
}

func TestPageCache_RoundTrip(t *testing.T) {
	pc := FromConfig(model.CacheConfig{
		Enabled:   true,
		Dir:       t.TempDir(),
		MemoryTTL: time.Minute,
		DiskTTL:   time.Hour,
	})
	if pc == nil {
		t.Fatal("expected a page cache")
	}

	page := &Page{URL: "https://example.org/final", Status: 200, Body: []byte("<p>hi</p>"), FetchedAt: time.Now()}
	if err := pc.Save("https://example.org/start", page); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok := pc.Load("https://example.org/start")
	if !ok {
		t.Fatal("page not found")
	}
	if got.URL != page.URL || got.Status != 200 || string(got.Body) != "<p>hi</p>" {
		t.Errorf("Load = %+v", got)
	}
	if _, ok := pc.Load("https://example.org/final"); ok {
		t.Error("pages are keyed by the requested address")
	}
}

func TestFromConfig_Disabled(t *testing.T) {
	if pc := FromConfig(model.CacheConfig{Enabled: false}); pc != nil {
		t.Error("expected nil page cache when disabled")
	}
}
