package models

import "time"

// BatteryUnknown is the battery percentage reported when the host has
// no battery or the sensor did not expose a capacity reading.
const BatteryUnknown = -1

// RuntimeUnknown is the estimated runtime reported before enough
// discharge samples exist to compute a drain rate.
const RuntimeUnknown = -1

// PowerSample is one reading of the host power state. Transient.
type PowerSample struct {
	// BatteryPercent is 0..100, or BatteryUnknown.
	BatteryPercent int `json:"battery_percent"`
	// OnAC is true when external power is attached.
	OnAC bool `json:"on_ac"`
	// SampledAt is when the reading was taken.
	SampledAt time.Time `json:"sampled_at"`
}

// Snapshot is the periodic status assembled by the heartbeat reporter.
type Snapshot struct {
	// Uptime is time since the daemon started.
	Uptime time.Duration `json:"uptime"`
	// MemoryFootprintBytes is the process heap in use.
	MemoryFootprintBytes uint64 `json:"memory_footprint_bytes"`
	// RunningAgents is the count of RUNNING agent handles.
	RunningAgents int `json:"running_agents"`
	// HotRecords is the hot tier record count.
	HotRecords int `json:"hot_records"`
	// BatteryPercent is the latest battery reading, or BatteryUnknown.
	BatteryPercent int `json:"battery_percent"`
	// OnAC is true when external power is attached.
	OnAC bool `json:"on_ac"`
	// Profile is the active profile at snapshot time.
	Profile Profile `json:"profile"`
	// EstimatedRuntimeHours is battery/drain-rate, or RuntimeUnknown.
	EstimatedRuntimeHours float64 `json:"estimated_runtime_hours"`
	// MetricsCollected is the monitor agent's cumulative sample count.
	MetricsCollected int64 `json:"metrics_collected"`
	// TokensUsed is cumulative remote backend token usage.
	TokensUsed int64 `json:"tokens_used"`
	// CostUSD is cumulative remote backend cost.
	CostUSD float64 `json:"cost_usd"`
	// TakenAt is when the snapshot was assembled.
	TakenAt time.Time `json:"taken_at"`
}
