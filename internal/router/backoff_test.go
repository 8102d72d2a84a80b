package router

import (
	"errors"
	"testing"
	"time"

	"github.com/shayc/otto/internal/backend"
)

func TestBackoff_DelayWithinJitterBounds(t *testing.T) {
	b := backoffPolicy{base: 500 * time.Millisecond, cap: 8 * time.Second}

	for i := 0; i < 50; i++ {
		d := b.delay(0)
		if d < 250*time.Millisecond || d > 750*time.Millisecond {
			t.Fatalf("delay(0) = %v, want within 50%% of 500ms", d)
		}
	}
}

func TestBackoff_DelayDoubles(t *testing.T) {
	b := backoffPolicy{base: 500 * time.Millisecond, cap: 8 * time.Second}

	// Attempt 2 centers on 2s; even with full jitter it cannot reach
	// below attempt 0's upper bound.
	for i := 0; i < 50; i++ {
		d := b.delay(2)
		if d < time.Second || d > 3*time.Second {
			t.Fatalf("delay(2) = %v, want within 50%% of 2s", d)
		}
	}
}

func TestBackoff_DelayCapped(t *testing.T) {
	b := backoffPolicy{base: 500 * time.Millisecond, cap: 8 * time.Second}

	for i := 0; i < 50; i++ {
		d := b.delay(20)
		if d > 12*time.Second {
			t.Fatalf("delay(20) = %v, want at most cap plus jitter", d)
		}
		if d < 4*time.Second {
			t.Fatalf("delay(20) = %v, want at least cap minus jitter", d)
		}
	}
}

func TestBackoff_DelayForHonorsRateLimit(t *testing.T) {
	b := backoffPolicy{base: 500 * time.Millisecond, cap: 8 * time.Second}

	err := &backend.RateLimitError{Provider: "local", RetryAfter: 42 * time.Second}
	if d := b.delayFor(0, err); d != 42*time.Second {
		t.Errorf("delayFor = %v, want 42s from Retry-After", d)
	}
}

func TestBackoff_DelayForIgnoresEmptyRateLimitHint(t *testing.T) {
	b := backoffPolicy{base: 500 * time.Millisecond, cap: 8 * time.Second}

	err := &backend.RateLimitError{Provider: "local"}
	d := b.delayFor(0, err)
	if d < 250*time.Millisecond || d > 750*time.Millisecond {
		t.Errorf("delayFor = %v, want the normal schedule", d)
	}
}

func TestBackoff_DelayForPlainError(t *testing.T) {
	b := backoffPolicy{base: 500 * time.Millisecond, cap: 8 * time.Second}

	d := b.delayFor(0, errors.New("boom"))
	if d < 250*time.Millisecond || d > 750*time.Millisecond {
		t.Errorf("delayFor = %v, want the normal schedule", d)
	}
}
