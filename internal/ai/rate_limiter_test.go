package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiterSpacesCalls(t *testing.T) {
	r := NewRateLimiter(20)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := r.WaitTurn(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("elapsed=%v", elapsed)
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	r := NewRateLimiter(1)
	_ = r.WaitTurn(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := r.WaitTurn(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v", err)
	}
}
