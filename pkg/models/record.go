package models

import "time"

// RecordKind represents what produced a memory record.
type RecordKind string

const (
	// KindConsultation is the audit record of a routed think call.
	KindConsultation RecordKind = "CONSULTATION"
	// KindTask is a work record written by an agent loop.
	KindTask RecordKind = "TASK"
	// KindPromptCapture is raw text forwarded by an external capture hook.
	KindPromptCapture RecordKind = "PROMPT_CAPTURE"
)

// Valid returns true if the kind is a known value.
func (k RecordKind) Valid() bool {
	switch k {
	case KindConsultation, KindTask, KindPromptCapture:
		return true
	default:
		return false
	}
}

// MemoryRecord is one durable interaction record in the tiered store.
// The ID is assigned on append and never changes; the tier only moves
// down the aging order except when an access promotes it back to HOT.
type MemoryRecord struct {
	// ID is the unique identifier assigned on append.
	ID string `json:"id"`
	// Tier is the current storage tier.
	Tier Tier `json:"tier"`
	// Kind is what produced this record.
	Kind RecordKind `json:"kind"`
	// AgentKind is the agent that wrote the record, if any.
	AgentKind AgentKind `json:"agent_kind,omitempty"`
	// Payload is the prompt, task description, or captured text.
	Payload string `json:"payload"`
	// Response is the answer text for consultation records.
	Response string `json:"response,omitempty"`
	// Backend names the backend that served a consultation.
	Backend Backend `json:"backend,omitempty"`
	// LatencyMS is the consultation latency in milliseconds.
	LatencyMS int64 `json:"latency_ms,omitempty"`
	// Complexity is the routed complexity score for consultations.
	Complexity float64 `json:"complexity,omitempty"`
	// CreatedAt is when the record was appended.
	CreatedAt time.Time `json:"created_at"`
	// LastAccessedAt is bumped by access promotion.
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// Footprint approximates the record's in-memory cost in bytes for
// hot-tier budget accounting.
func (r *MemoryRecord) Footprint() int64 {
	return int64(len(r.Payload) + len(r.Response) + 256)
}
