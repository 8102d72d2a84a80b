package models

import "time"

// Backend identifies a reasoning backend the router can consult.
type Backend string

const (
	// BackendRemoteHeavy is the high-capability remote reasoning service.
	BackendRemoteHeavy Backend = "REMOTE_HEAVY"
	// BackendLocalLight is the low-cost local inference service.
	BackendLocalLight Backend = "LOCAL_LIGHT"
	// BackendCache answers from stored consultations without generation.
	BackendCache Backend = "CACHE"
	// BackendNone marks a cache-only miss that produced no answer.
	BackendNone Backend = "NONE"
)

// Valid returns true if the backend is a known value.
func (b Backend) Valid() bool {
	switch b {
	case BackendRemoteHeavy, BackendLocalLight, BackendCache, BackendNone:
		return true
	default:
		return false
	}
}

// ThinkRequest is one reasoning request submitted to the router.
type ThinkRequest struct {
	// Prompt is the text to reason about.
	Prompt string `json:"prompt"`
	// Context is prior memory prepended to the prompt, newest first.
	Context []MemoryRecord `json:"context,omitempty"`
	// DeclaredComplexity overrides the computed score when set.
	DeclaredComplexity *float64 `json:"declared_complexity,omitempty"`
	// Agent is the requesting agent kind, recorded for audit.
	Agent AgentKind `json:"agent,omitempty"`
}

// ThinkResult is the outcome of a routed reasoning request.
type ThinkResult struct {
	// Answer is the generated or cached answer text.
	Answer string `json:"answer"`
	// Backend is the backend that produced the answer.
	Backend Backend `json:"backend"`
	// Latency is the wall time spent serving the request.
	Latency time.Duration `json:"latency"`
	// Complexity is the score the routing decision used.
	Complexity float64 `json:"complexity"`
	// Cached is true when the answer came from a stored consultation.
	Cached bool `json:"cached"`
}
