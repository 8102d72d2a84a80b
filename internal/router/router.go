// Package router dispatches think requests to a reasoning backend
// chosen from the active profile's policy and the prompt's complexity,
// with retry, fallback, and a consultation audit trail.
package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shayc/otto/internal/backend"
	"github.com/shayc/otto/internal/events"
	"github.com/shayc/otto/internal/memory"
	"github.com/shayc/otto/pkg/models"
)

var (
	// ErrBackendTimeout marks a backend call that exceeded the per-call
	// ceiling. Counts as a failed attempt for the retry policy.
	ErrBackendTimeout = errors.New("backend timeout")
	// ErrBackendError marks a backend call that failed outright.
	ErrBackendError = errors.New("backend error")
	// ErrAllBackendsUnavailable means every permitted backend exhausted
	// its retries and no cached answer matched. Terminal for the one
	// think call, never for the process.
	ErrAllBackendsUnavailable = errors.New("all backends unavailable")
)

// PolicySource yields the routing constraints in force at call time.
// The monitor's active profile backs the daemon's implementation, so a
// profile change is picked up on the next think call without restart.
type PolicySource interface {
	// ActivePolicy returns the reasoning policy of the active profile.
	ActivePolicy() models.ReasoningPolicy
	// CacheTTL returns how old a cached answer may be under the active
	// profile.
	CacheTTL() time.Duration
}

// StaticPolicy is a PolicySource pinned to fixed values. Used by CLI
// one-shot commands and tests.
type StaticPolicy struct {
	Policy models.ReasoningPolicy
	TTL    time.Duration
}

// ActivePolicy returns the pinned policy.
func (sp StaticPolicy) ActivePolicy() models.ReasoningPolicy { return sp.Policy }

// CacheTTL returns the pinned TTL.
func (sp StaticPolicy) CacheTTL() time.Duration { return sp.TTL }

// Memory is the slice of the tiered store the router uses.
type Memory interface {
	Append(ctx context.Context, rec *models.MemoryRecord) error
	Cached(prompt string, ttl time.Duration) (*models.MemoryRecord, error)
	Query(f memory.QueryFilter) ([]models.MemoryRecord, error)
}

// Config assembles a Router.
type Config struct {
	// Store receives consultation audit records and serves the cache.
	Store Memory
	// Policy yields the reasoning policy per call.
	Policy PolicySource
	// Remote is the heavy backend. May be nil when unconfigured.
	Remote backend.Backend
	// Local is the light backend. May be nil when unconfigured.
	Local backend.Backend
	// Scorer overrides the default complexity scorer.
	Scorer Scorer
	// MaxAttempts is tries per backend before falling back. Default 3.
	MaxAttempts int
	// BackoffBase is the first retry delay. Default 500ms.
	BackoffBase time.Duration
	// BackoffCap bounds the exponential delay. Default 8s.
	BackoffCap time.Duration
	// ThinkTimeout is the per-call ceiling. Default 30s.
	ThinkTimeout time.Duration
	// ContextRecords is how many recent consultations enrich a bare
	// prompt. Default 3, negative disables.
	ContextRecords int
	// Emitter receives a served event per think call. May be nil.
	Emitter *events.Emitter
}

// Router routes think requests. Safe for concurrent use; it holds no
// per-request state and the store serializes its own writes.
type Router struct {
	store          Memory
	policy         PolicySource
	remote         backend.Backend
	local          backend.Backend
	scorer         Scorer
	maxAttempts    int
	thinkTimeout   time.Duration
	contextRecords int
	backoff        backoffPolicy
	emitter        *events.Emitter
}

// NewRouter creates a router from config, applying defaults.
func NewRouter(cfg Config) (*Router, error) {
	if cfg.Store == nil {
		return nil, errors.New("router requires a store")
	}
	if cfg.Policy == nil {
		return nil, errors.New("router requires a policy source")
	}

	scorer := cfg.Scorer
	if scorer == nil {
		scorer = NewKeywordScorer()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	base := cfg.BackoffBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	ceiling := cfg.BackoffCap
	if ceiling <= 0 {
		ceiling = 8 * time.Second
	}
	thinkTimeout := cfg.ThinkTimeout
	if thinkTimeout <= 0 {
		thinkTimeout = 30 * time.Second
	}
	contextRecords := cfg.ContextRecords
	if contextRecords == 0 {
		contextRecords = 3
	}

	return &Router{
		store:          cfg.Store,
		policy:         cfg.Policy,
		remote:         cfg.Remote,
		local:          cfg.Local,
		scorer:         scorer,
		maxAttempts:    maxAttempts,
		thinkTimeout:   thinkTimeout,
		contextRecords: contextRecords,
		backoff:        backoffPolicy{base: base, cap: ceiling},
		emitter:        cfg.Emitter,
	}, nil
}

// Think routes one request. Every call appends exactly one consultation
// record, whatever the outcome.
func (r *Router) Think(ctx context.Context, req models.ThinkRequest) (models.ThinkResult, error) {
	start := time.Now()

	score := r.scorer.Score(req.Prompt)
	if req.DeclaredComplexity != nil {
		score = clampScore(*req.DeclaredComplexity)
	}

	policy := r.policy.ActivePolicy()
	ttl := r.policy.CacheTTL()

	result, err := r.dispatch(ctx, policy, req, score, ttl)
	result.Latency = time.Since(start)
	result.Complexity = score

	r.audit(req, &result)

	if r.emitter != nil {
		r.emitter.Emit(events.Event{
			Type:    events.EventThinkServed,
			Agent:   req.Agent,
			Backend: result.Backend,
			Latency: result.Latency,
		})
	}

	return result, err
}

// dispatch runs the routing table for one call.
func (r *Router) dispatch(ctx context.Context, policy models.ReasoningPolicy, req models.ThinkRequest, score float64, ttl time.Duration) (models.ThinkResult, error) {
	if policy == models.PolicyCacheOnly {
		return r.fromCache(req.Prompt, ttl)
	}

	prompt := r.enrich(req)

	for _, b := range r.chain(policy, score) {
		answer, err := r.callWithRetry(ctx, b, prompt)
		if err == nil {
			return models.ThinkResult{Answer: answer, Backend: b.Name()}, nil
		}
		log.Printf("[router] %s exhausted, falling back: %v", b.Name(), err)
	}

	// Last tier down: a fresh-enough cached answer.
	if result, err := r.fromCache(req.Prompt, ttl); err == nil {
		return result, nil
	}
	return models.ThinkResult{Backend: models.BackendNone}, ErrAllBackendsUnavailable
}

// chain returns the backends the policy permits, in fallback order.
// Nil backends are skipped so a partially wired daemon degrades
// instead of panicking.
func (r *Router) chain(policy models.ReasoningPolicy, score float64) []backend.Backend {
	var order []backend.Backend
	switch policy {
	case models.PolicyHybrid:
		if score >= heavyThreshold {
			order = []backend.Backend{r.remote, r.local}
		} else {
			order = []backend.Backend{r.local}
		}
	case models.PolicyPreferLocal:
		order = []backend.Backend{r.local, r.remote}
	default:
		order = []backend.Backend{r.local}
	}

	var chain []backend.Backend
	for _, b := range order {
		if b != nil {
			chain = append(chain, b)
		}
	}
	return chain
}

// callWithRetry runs one backend with the retry schedule. The returned
// error is classified into the router taxonomy.
func (r *Router) callWithRetry(ctx context.Context, b backend.Backend, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.backoff.delayFor(attempt-1, lastErr)):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %s", ErrBackendTimeout, ctx.Err())
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, r.thinkTimeout)
		answer, err := b.Complete(callCtx, prompt)
		cancel()
		if err == nil {
			return answer, nil
		}

		lastErr = err
		log.Printf("[router] %s attempt %d/%d failed: %v", b.Name(), attempt+1, r.maxAttempts, err)
	}
	return "", classify(lastErr)
}

// classify folds a raw backend failure into the router error taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrBackendTimeout, err)
	}
	return fmt.Errorf("%w: %s", ErrBackendError, err)
}

// fromCache serves a request from stored consultations.
func (r *Router) fromCache(prompt string, ttl time.Duration) (models.ThinkResult, error) {
	rec, err := r.store.Cached(prompt, ttl)
	if err != nil {
		return models.ThinkResult{Backend: models.BackendNone}, err
	}
	return models.ThinkResult{
		Answer:  rec.Response,
		Backend: models.BackendCache,
		Cached:  true,
	}, nil
}

const contextSnippetLen = 160

// enrich prepends conversation history to a prompt. A request that
// carries its own context uses that; otherwise the requesting agent's
// recent consultations fill in.
func (r *Router) enrich(req models.ThinkRequest) string {
	history := req.Context
	if len(history) == 0 && req.Agent != "" && r.contextRecords > 0 {
		recs, err := r.store.Query(memory.QueryFilter{
			AgentKind: req.Agent,
			Kind:      models.KindConsultation,
			Limit:     r.contextRecords,
		})
		if err != nil {
			log.Printf("[router] context query failed: %v", err)
		} else {
			history = recs
		}
	}
	if len(history) == 0 {
		return req.Prompt
	}

	var sb strings.Builder
	sb.WriteString("Recent consultations:\n")
	for _, rec := range history {
		sb.WriteString("Q: ")
		sb.WriteString(truncate(rec.Payload, contextSnippetLen))
		sb.WriteString("\nA: ")
		sb.WriteString(truncate(rec.Response, contextSnippetLen))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(req.Prompt)
	return sb.String()
}

// audit appends the consultation record for a completed think call.
// The answer is empty on total failure. An append failure never
// changes the think result.
func (r *Router) audit(req models.ThinkRequest, result *models.ThinkResult) {
	rec := &models.MemoryRecord{
		Kind:       models.KindConsultation,
		AgentKind:  req.Agent,
		Payload:    req.Prompt,
		Response:   result.Answer,
		Backend:    result.Backend,
		LatencyMS:  result.Latency.Milliseconds(),
		Complexity: result.Complexity,
	}

	// The caller's context may already be dead; the audit write gets
	// its own deadline so it is never skipped with the store healthy.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.Append(ctx, rec); err != nil {
		log.Printf("[router] ERROR: consultation audit append failed: %v", err)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
