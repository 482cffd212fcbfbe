package llm

import (
	"context"
	"time"

	"github.com/ppiankov/crimestats/internal/cache"
)

// completeText runs req through the cache and returns the flattened answer
func completeText(ctx context.Context, provider Provider, c cache.Cache, ttl time.Duration, req Request) (string, error) {
	key := cache.Key(provider.Name(), req.Model, req.Prompt, req.ImageURL)

	val, _, err := cache.GetOrLoad(ctx, c, key, ttl, func(ctx context.Context) ([]byte, error) {
		resp, err := provider.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		return []byte(resp.Text()), nil
	})
	if err != nil {
		return "", err
	}
	return string(val), nil
}
