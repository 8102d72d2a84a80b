// Package backend provides the reasoning backends the router dispatches
// to: a remote Anthropic API client and a local Ollama-style client.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/shayc/otto/pkg/models"
)

// Backend is a reasoning engine that can answer a single prompt.
type Backend interface {
	// Name identifies the backend in audit records and logs.
	Name() models.Backend
	// Complete sends one prompt and returns the completion text.
	Complete(ctx context.Context, prompt string) (string, error)
	// Ping checks whether the backend is reachable.
	Ping(ctx context.Context) error
}

// RateLimitError indicates the provider returned a rate limit response.
// Callers can use errors.As to detect this error type and honor the
// advertised delay instead of their own backoff schedule.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry after %v", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limit exceeded", e.Provider)
}
