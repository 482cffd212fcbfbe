package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	k1 := Key("model", "prompt", "https://img.example/robbery.webp")
	k2 := Key("model", "prompt", "https://img.example/robbery.webp")
	if k1 != k2 {
		t.Error("expected identical parts to produce identical keys")
	}

	if !strings.HasPrefix(k1, "crimestats:v1:") {
		t.Errorf("unexpected key prefix: %s", k1)
	}

	if Key("ab", "c") == Key("a", "bc") {
		t.Error("expected part boundaries to change the key")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, found := c.Get("missing"); found {
		t.Error("expected miss for unknown key")
	}

	if err := c.Set("k", []byte("2014,10"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, found := c.Get("k")
	if !found || string(val) != "2014,10" {
		t.Errorf("expected hit with stored value, got %q (found=%v)", val, found)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}

	_ = c.Delete("k")
	if _, found := c.Get("k"); found {
		t.Error("expected miss after delete")
	}

	_ = c.Set("a", []byte("1"), 0)
	_ = c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after clear, got %d", c.Len())
	}
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	key := Key("model", "prompt")
	if err := c.Set(key, []byte("42"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, found := c.Get(key)
	if !found || string(val) != "42" {
		t.Fatalf("expected hit with 42, got %q (found=%v)", val, found)
	}

	// Advance the clock past expiry
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, found := c.Get(key); found {
		t.Error("expected miss for expired entry")
	}
	if _, err := os.Stat(c.path(key)); !errors.Is(err, os.ErrNotExist) {
		t.Error("expected expired entry to be removed from disk")
	}
}

func TestDiskCache_NoExpiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), 0)
	_ = c.Set("k", []byte("v"), 0)

	c.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }
	if _, found := c.Get("k"); !found {
		t.Error("expected entry without ttl to never expire")
	}
}

func TestDiskCache_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	if err := os.WriteFile(filepath.Join(dir, "bad.cache"), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, found := c.Get("bad"); found {
		t.Error("expected miss for corrupt entry")
	}
}

func TestDiskCache_DeleteMissing(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	if err := c.Delete("absent"); err != nil {
		t.Errorf("expected no error deleting a missing entry, got %v", err)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Minute, dir, time.Hour)

	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A fresh layered cache over the same directory only has the disk copy
	fresh := NewLayeredCache(time.Minute, dir, time.Hour)
	val, found := fresh.Get("k")
	if !found || string(val) != "v" {
		t.Fatalf("expected disk hit, got %q (found=%v)", val, found)
	}
	if _, found := fresh.memory.Get("k"); !found {
		t.Error("expected disk hit to be promoted to memory")
	}

	if err := fresh.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, found := fresh.Get("k"); found {
		t.Error("expected miss after clear")
	}
}

func TestGetOrLoad(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	calls := 0
	load := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("2014,5"), nil
	}

	val, hit, err := GetOrLoad(context.Background(), c, "k", 0, load)
	if err != nil || hit || string(val) != "2014,5" {
		t.Fatalf("unexpected first load: %q hit=%v err=%v", val, hit, err)
	}

	val, hit, err = GetOrLoad(context.Background(), c, "k", 0, load)
	if err != nil || !hit || string(val) != "2014,5" {
		t.Fatalf("unexpected second load: %q hit=%v err=%v", val, hit, err)
	}
	if calls != 1 {
		t.Errorf("expected loader to run once, ran %d times", calls)
	}
}

func TestGetOrLoad_ErrorNotCached(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	boom := errors.New("boom")

	_, _, err := GetOrLoad(context.Background(), c, "k", 0, func(ctx context.Context) ([]byte, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if _, found := c.Get("k"); found {
		t.Error("expected failed load to leave cache empty")
	}
}

func TestGetOrLoad_NilCache(t *testing.T) {
	val, hit, err := GetOrLoad(context.Background(), nil, "k", 0, func(ctx context.Context) ([]byte, error) {
		return []byte("x"), nil
	})
	if err != nil || hit || string(val) != "x" {
		t.Errorf("unexpected result with nil cache: %q hit=%v err=%v", val, hit, err)
	}
}
