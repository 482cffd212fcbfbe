package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching model responses
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key from the parts of a model request
// (model, prompt, attachment reference). Part boundaries are preserved, so
// ("ab", "c") and ("a", "bc") give different keys.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return "crimestats:v1:" + hex.EncodeToString(h.Sum(nil))
}

// GetOrLoad returns the cached value for key, or calls load and stores the
// result. Load errors are returned as-is and nothing is cached. A failing
// store does not fail the call.
func GetOrLoad(ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	if c == nil {
		val, err := load(ctx)
		return val, false, err
	}

	if val, found := c.Get(key); found {
		return val, true, nil
	}

	val, err := load(ctx)
	if err != nil {
		return nil, false, err
	}

	_ = c.Set(key, val, ttl)
	return val, false, nil
}
