// Package events carries runtime notifications between the daemon's
// components and its observers.
package events

import (
	"time"

	"github.com/shayc/otto/pkg/models"
)

// EventType represents the type of runtime event.
type EventType string

const (
	// EventProfileChanged indicates the power monitor accepted a new profile.
	EventProfileChanged EventType = "profile_changed"
	// EventSampleFailed indicates a power sample could not be read.
	EventSampleFailed EventType = "sample_failed"
	// EventSensorRecovered indicates sampling succeeded after a failure.
	EventSensorRecovered EventType = "sensor_recovered"
	// EventAgentStarted indicates an agent reached the running state.
	EventAgentStarted EventType = "agent_started"
	// EventAgentStopped indicates an agent drained and stopped.
	EventAgentStopped EventType = "agent_stopped"
	// EventThinkServed indicates the router answered a reasoning request.
	EventThinkServed EventType = "think_served"
	// EventHeartbeat carries a fresh status snapshot.
	EventHeartbeat EventType = "heartbeat"
	// EventMaintenance reports an aging, backup, or cleanup run.
	EventMaintenance EventType = "maintenance"
)

// Event is one runtime notification. Only the fields relevant to the
// type are populated.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// Profile is the active profile after the event.
	Profile models.Profile
	// PreviousProfile is the profile before a change.
	PreviousProfile models.Profile
	// BatteryPercent is the reading behind a profile change.
	BatteryPercent int
	// OnAC reports external power at the time of the event.
	OnAC bool
	// Agent is the related agent kind, if applicable.
	Agent models.AgentKind
	// Backend is the backend that served a think call.
	Backend models.Backend
	// Latency is the think call duration.
	Latency time.Duration
	// Snapshot carries the heartbeat payload.
	Snapshot *models.Snapshot
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
