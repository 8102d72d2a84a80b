package models

// Tier represents the recency-based storage classification of a memory record.
type Tier string

const (
	// TierHot is the in-memory working set, counted against the profile budget.
	TierHot Tier = "HOT"
	// TierWarm holds records recently evicted or aged out of the hot set.
	TierWarm Tier = "WARM"
	// TierCold holds records past the daily boundary.
	TierCold Tier = "COLD"
	// TierArchive holds records past the retention horizon, pending deletion.
	TierArchive Tier = "ARCHIVE"
)

// tierRank orders tiers from most recent (0) to most aged.
var tierRank = map[Tier]int{
	TierHot:     0,
	TierWarm:    1,
	TierCold:    2,
	TierArchive: 3,
}

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// OlderThan returns true if t is further down the aging order than other.
func (t Tier) OlderThan(other Tier) bool {
	return tierRank[t] > tierRank[other]
}

// AllTiers lists every tier in aging order.
func AllTiers() []Tier {
	return []Tier{TierHot, TierWarm, TierCold, TierArchive}
}
