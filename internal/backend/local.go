package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shayc/otto/pkg/models"
)

const defaultLocalTimeout = 30 * time.Second

// Local is the light reasoning backend over an Ollama-compatible
// generate endpoint running on the same host.
type Local struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// LocalConfig contains configuration for creating a Local backend.
type LocalConfig struct {
	// BaseURL is the server address (e.g., "http://localhost:11434").
	BaseURL string
	// Model is the local model name (e.g., "llama3.2:3b").
	Model string
	// Timeout bounds a single generate call.
	Timeout time.Duration
}

// NewLocal creates the local backend from configuration.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("local backend URL is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("local backend model is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLocalTimeout
	}
	return &Local{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name identifies this backend in audit records.
func (l *Local) Name() models.Backend {
	return models.BackendLocalLight
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete sends one prompt to the local generate endpoint and returns
// the completion.
func (l *Local) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  l.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call local backend: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &RateLimitError{
			Provider:   "local",
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("local backend returned status %d: %s", resp.StatusCode, string(data))
	}

	var gen generateResponse
	if err := json.Unmarshal(data, &gen); err != nil {
		return "", fmt.Errorf("unmarshal generate response: %w", err)
	}
	if gen.Response == "" {
		return "", errors.New("empty completion")
	}
	return gen.Response, nil
}

// Ping checks whether the local server is reachable. Used at startup
// and when the router considers falling back to this backend.
func (l *Local) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping local backend: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("local backend returned status %d", resp.StatusCode)
	}
	return nil
}

// Model returns the configured model name.
func (l *Local) Model() string {
	return l.model
}

// parseRetryAfter reads a Retry-After header value as delay seconds.
// Zero means the server gave no usable hint.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
