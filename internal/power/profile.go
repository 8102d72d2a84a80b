package power

import "github.com/shayc/otto/pkg/models"

// Thresholds are the battery percentage boundaries between profiles.
// Each bound is exclusive: a reading must be strictly above it.
type Thresholds struct {
	PerformanceAbove int
	BalancedAbove    int
	EcoAbove         int
}

// DefaultThresholds returns the stock profile boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{PerformanceAbove: 80, BalancedAbove: 40, EcoAbove: 20}
}

// CandidateProfile maps one power reading to the profile it argues for,
// before hysteresis. External power always reads PERFORMANCE. On
// battery the profile follows the charge ladder; PERFORMANCE while
// discharging needs performanceOnBattery and a reading above the top
// threshold, otherwise a discharging host tops out at BALANCED.
func CandidateProfile(sample models.PowerSample, t Thresholds, performanceOnBattery bool) models.Profile {
	if sample.OnAC || sample.BatteryPercent == models.BatteryUnknown {
		return models.ProfilePerformance
	}

	pct := sample.BatteryPercent
	switch {
	case performanceOnBattery && pct > t.PerformanceAbove:
		return models.ProfilePerformance
	case pct > t.BalancedAbove:
		return models.ProfileBalanced
	case pct > t.EcoAbove:
		return models.ProfileEco
	default:
		return models.ProfileCritical
	}
}
