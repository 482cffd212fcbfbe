package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "google/gemini-2.5-pro"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	if err := limiter.Wait(ctx, "google/gemini-2.5-flash-lite"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

// tryWait reports whether a token for key is available without waiting
func tryWait(l *Limiter, key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	return l.Wait(ctx, key) == nil
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "vision"); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Burst 1 is consumed by the first wait
	if tryWait(limiter, "vision") {
		t.Errorf("expected wait to fail (exhausted tokens)")
	}

	if !tryWait(limiter, "text") {
		t.Errorf("expected wait to pass for other key")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)

	for i := 0; i < 20; i++ {
		if !tryWait(limiter, "model") {
			t.Fatalf("expected unlimited limiter to allow request %d", i)
		}
	}
}

func TestLimiter_SetKeyRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	key := "slow-model"

	limiter.SetKeyRate(key, 0.1, 1)

	if !tryWait(limiter, key) {
		t.Errorf("first request should pass")
	}

	if tryWait(limiter, key) {
		t.Errorf("second request should fail")
	}

	if !tryWait(limiter, "fast-model") {
		t.Errorf("other key should pass")
	}
}

func TestLimiter_SetKeyRate_Unlimited(t *testing.T) {
	limiter := NewLimiter(1, 1)
	limiter.SetKeyRate("local-model", 0, 1)

	for i := 0; i < 5; i++ {
		if !tryWait(limiter, "local-model") {
			t.Fatalf("expected unlimited key to pass request %d", i)
		}
	}
}
