package router

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/shayc/otto/internal/backend"
)

// backoffPolicy produces the delay before each retry attempt.
type backoffPolicy struct {
	base time.Duration
	cap  time.Duration
}

// delay returns the pause after the given failed attempt (0-indexed).
// The schedule is min(base * 2^attempt, cap) with up to 50% jitter in
// either direction.
func (b backoffPolicy) delay(attempt int) time.Duration {
	d := time.Duration(float64(b.base) * math.Pow(2, float64(attempt)))
	if d > b.cap || d <= 0 {
		d = b.cap
	}

	jitter := float64(d) * 0.5 * (rand.Float64()*2 - 1)
	return time.Duration(float64(d) + jitter)
}

// delayFor returns the pause after a failed attempt, honoring a
// rate-limit hint from the backend over the computed schedule.
func (b backoffPolicy) delayFor(attempt int, err error) time.Duration {
	var rateErr *backend.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
		return rateErr.RetryAfter
	}
	return b.delay(attempt)
}
