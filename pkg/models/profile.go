package models

// Profile represents an operating profile selected from the host power state.
type Profile string

const (
	// ProfilePerformance is for AC power or a nearly full battery.
	ProfilePerformance Profile = "PERFORMANCE"
	// ProfileBalanced is for a healthy battery charge on battery power.
	ProfileBalanced Profile = "BALANCED"
	// ProfileEco is for a low battery that still has headroom.
	ProfileEco Profile = "ECO"
	// ProfileCritical is for a nearly empty battery or an unreadable sensor.
	ProfileCritical Profile = "CRITICAL"
)

// profileRank orders profiles from least constrained (0) to most constrained.
var profileRank = map[Profile]int{
	ProfilePerformance: 0,
	ProfileBalanced:    1,
	ProfileEco:         2,
	ProfileCritical:    3,
}

// Valid returns true if the profile is a known value.
func (p Profile) Valid() bool {
	_, ok := profileRank[p]
	return ok
}

// MoreConstrainedThan returns true if p allows fewer resources than other.
func (p Profile) MoreConstrainedThan(other Profile) bool {
	return profileRank[p] > profileRank[other]
}

// LessConstrainedThan returns true if p allows more resources than other.
func (p Profile) LessConstrainedThan(other Profile) bool {
	return profileRank[p] < profileRank[other]
}

// AllProfiles lists every profile from least to most constrained.
func AllProfiles() []Profile {
	return []Profile{ProfilePerformance, ProfileBalanced, ProfileEco, ProfileCritical}
}

// ReasoningPolicy represents how think requests are routed under a profile.
type ReasoningPolicy string

const (
	// PolicyHybrid routes complex requests to the remote backend and the rest locally.
	PolicyHybrid ReasoningPolicy = "HYBRID"
	// PolicyPreferLocal routes everything locally but may fall back to remote.
	PolicyPreferLocal ReasoningPolicy = "PREFER_LOCAL"
	// PolicyLocalOnly routes everything locally with no remote fallback.
	PolicyLocalOnly ReasoningPolicy = "LOCAL_ONLY"
	// PolicyCacheOnly answers from cached consultations without any generation.
	PolicyCacheOnly ReasoningPolicy = "CACHE_ONLY"
)

// Valid returns true if the policy is a known value.
func (rp ReasoningPolicy) Valid() bool {
	switch rp {
	case PolicyHybrid, PolicyPreferLocal, PolicyLocalOnly, PolicyCacheOnly:
		return true
	default:
		return false
	}
}
