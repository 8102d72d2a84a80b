package models

import "time"

// AgentKind identifies one of the worker agents the supervisor can run.
type AgentKind string

const (
	// AgentMonitor collects runtime metrics. It runs under every profile.
	AgentMonitor AgentKind = "MONITOR"
	// AgentIndexer walks project directories and records index summaries.
	AgentIndexer AgentKind = "INDEXER"
	// AgentLearner extracts recurring patterns from consultation history.
	AgentLearner AgentKind = "LEARNER"
	// AgentCoder executes queued coding prompts through the router.
	AgentCoder AgentKind = "CODER"
	// AgentReviewer reviews recent coder output. Performance profile only.
	AgentReviewer AgentKind = "REVIEWER"
)

// agentMinProfile is the most constrained profile each kind may run under.
var agentMinProfile = map[AgentKind]Profile{
	AgentMonitor:  ProfileCritical,
	AgentIndexer:  ProfileBalanced,
	AgentLearner:  ProfileBalanced,
	AgentCoder:    ProfileBalanced,
	AgentReviewer: ProfilePerformance,
}

// Valid returns true if the kind is a known value.
func (k AgentKind) Valid() bool {
	_, ok := agentMinProfile[k]
	return ok
}

// MinimumProfile returns the most constrained profile the kind may run under.
func (k AgentKind) MinimumProfile() Profile {
	return agentMinProfile[k]
}

// EligibleUnder returns true if the kind may run under the given profile.
func (k AgentKind) EligibleUnder(p Profile) bool {
	min, ok := agentMinProfile[k]
	if !ok {
		return false
	}
	return !p.MoreConstrainedThan(min)
}

// AllAgentKinds lists every agent kind in roster order.
func AllAgentKinds() []AgentKind {
	return []AgentKind{AgentMonitor, AgentIndexer, AgentLearner, AgentCoder, AgentReviewer}
}

// RosterFor returns the set of agent kinds permitted under a profile.
func RosterFor(p Profile) []AgentKind {
	var roster []AgentKind
	for _, k := range AllAgentKinds() {
		if k.EligibleUnder(p) {
			roster = append(roster, k)
		}
	}
	return roster
}

// AgentState represents the lifecycle state of an agent handle.
type AgentState string

const (
	// AgentStopped indicates no live instance exists for the kind.
	AgentStopped AgentState = "STOPPED"
	// AgentStarting indicates the instance is being constructed.
	AgentStarting AgentState = "STARTING"
	// AgentRunning indicates the work loop is active.
	AgentRunning AgentState = "RUNNING"
	// AgentStopping indicates the instance is draining before release.
	AgentStopping AgentState = "STOPPING"
)

// Valid returns true if the state is a known value.
func (s AgentState) Valid() bool {
	switch s {
	case AgentStopped, AgentStarting, AgentRunning, AgentStopping:
		return true
	default:
		return false
	}
}

// AgentHandle is a point-in-time view of a supervised agent instance.
type AgentHandle struct {
	// ID is the short unique identifier for this instance.
	ID string `json:"id"`
	// Kind is the agent kind this handle runs.
	Kind AgentKind `json:"kind"`
	// State is the lifecycle state at snapshot time.
	State AgentState `json:"state"`
	// StartedAt is when the instance entered RUNNING.
	StartedAt time.Time `json:"started_at"`
	// LastHeartbeat is the last time the work loop reported progress.
	LastHeartbeat time.Time `json:"last_heartbeat"`
	// TasksCompleted counts work loop passes that wrote a record.
	TasksCompleted int64 `json:"tasks_completed"`
}
