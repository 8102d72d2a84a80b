package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/shayc/otto/pkg/models"
)

// ProfileConfig holds the tunable numbers for a single operating profile.
// The agent roster is not configurable; it follows the per-kind minimum
// profiles declared in pkg/models.
type ProfileConfig struct {
	// Policy is the reasoning policy name (HYBRID, PREFER_LOCAL,
	// LOCAL_ONLY, CACHE_ONLY).
	Policy string `mapstructure:"policy"`
	// MonitoringInterval is the heartbeat period under this profile.
	MonitoringInterval time.Duration `mapstructure:"monitoring_interval"`
	// MemoryBudgetMB bounds the hot tier working set.
	MemoryBudgetMB int64 `mapstructure:"memory_budget_mb"`
	// CacheTTL bounds how old a cached answer may be.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// CPUPercentLimit is the advisory CPU ceiling, reported in status.
	CPUPercentLimit int `mapstructure:"cpu_percent_limit"`
}

// ReasoningPolicy returns the policy as a typed value.
func (pc *ProfileConfig) ReasoningPolicy() models.ReasoningPolicy {
	return models.ReasoningPolicy(pc.Policy)
}

// BudgetBytes returns the hot tier budget in bytes.
func (pc *ProfileConfig) BudgetBytes() int64 {
	return pc.MemoryBudgetMB * 1024 * 1024
}

// ProfilesConfig holds the configuration for all four profiles.
type ProfilesConfig struct {
	Performance *ProfileConfig `mapstructure:"performance"`
	Balanced    *ProfileConfig `mapstructure:"balanced"`
	Eco         *ProfileConfig `mapstructure:"eco"`
	Critical    *ProfileConfig `mapstructure:"critical"`
}

// Get returns the profile config for the given profile.
func (pc *ProfilesConfig) Get(p models.Profile) *ProfileConfig {
	switch p {
	case models.ProfilePerformance:
		return pc.Performance
	case models.ProfileBalanced:
		return pc.Balanced
	case models.ProfileEco:
		return pc.Eco
	case models.ProfileCritical:
		return pc.Critical
	default:
		return pc.Critical // Unknown profiles get the safest config
	}
}

// Validate checks that every profile carries a usable configuration.
func (pc *ProfilesConfig) Validate() error {
	for _, p := range models.AllProfiles() {
		c := pc.Get(p)
		if c == nil {
			return fmt.Errorf("profile %s: missing configuration", p)
		}
		if !c.ReasoningPolicy().Valid() {
			return fmt.Errorf("profile %s: unknown reasoning policy %q", p, c.Policy)
		}
		if c.MonitoringInterval <= 0 {
			return fmt.Errorf("profile %s: monitoring_interval must be positive", p)
		}
		if c.MemoryBudgetMB <= 0 {
			return fmt.Errorf("profile %s: memory_budget_mb must be positive", p)
		}
	}
	return nil
}

// setProfileDefaults configures the built-in per-profile numbers.
func setProfileDefaults(v *viper.Viper) {
	v.SetDefault("profiles.performance.policy", string(models.PolicyHybrid))
	v.SetDefault("profiles.performance.monitoring_interval", "60s")
	v.SetDefault("profiles.performance.memory_budget_mb", 3000)
	v.SetDefault("profiles.performance.cache_ttl", "1h")
	v.SetDefault("profiles.performance.cpu_percent_limit", 80)

	v.SetDefault("profiles.balanced.policy", string(models.PolicyPreferLocal))
	v.SetDefault("profiles.balanced.monitoring_interval", "120s")
	v.SetDefault("profiles.balanced.memory_budget_mb", 1500)
	v.SetDefault("profiles.balanced.cache_ttl", "4h")
	v.SetDefault("profiles.balanced.cpu_percent_limit", 50)

	v.SetDefault("profiles.eco.policy", string(models.PolicyLocalOnly))
	v.SetDefault("profiles.eco.monitoring_interval", "300s")
	v.SetDefault("profiles.eco.memory_budget_mb", 800)
	v.SetDefault("profiles.eco.cache_ttl", "24h")
	v.SetDefault("profiles.eco.cpu_percent_limit", 30)

	v.SetDefault("profiles.critical.policy", string(models.PolicyCacheOnly))
	v.SetDefault("profiles.critical.monitoring_interval", "600s")
	v.SetDefault("profiles.critical.memory_budget_mb", 500)
	v.SetDefault("profiles.critical.cache_ttl", "168h")
	v.SetDefault("profiles.critical.cpu_percent_limit", 15)
}

// DefaultProfiles returns the built-in profile configurations.
func DefaultProfiles() *ProfilesConfig {
	return &ProfilesConfig{
		Performance: &ProfileConfig{
			Policy:             string(models.PolicyHybrid),
			MonitoringInterval: 60 * time.Second,
			MemoryBudgetMB:     3000,
			CacheTTL:           time.Hour,
			CPUPercentLimit:    80,
		},
		Balanced: &ProfileConfig{
			Policy:             string(models.PolicyPreferLocal),
			MonitoringInterval: 120 * time.Second,
			MemoryBudgetMB:     1500,
			CacheTTL:           4 * time.Hour,
			CPUPercentLimit:    50,
		},
		Eco: &ProfileConfig{
			Policy:             string(models.PolicyLocalOnly),
			MonitoringInterval: 300 * time.Second,
			MemoryBudgetMB:     800,
			CacheTTL:           24 * time.Hour,
			CPUPercentLimit:    30,
		},
		Critical: &ProfileConfig{
			Policy:             string(models.PolicyCacheOnly),
			MonitoringInterval: 600 * time.Second,
			MemoryBudgetMB:     500,
			CacheTTL:           168 * time.Hour,
			CPUPercentLimit:    15,
		},
	}
}
