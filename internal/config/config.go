// Package config handles configuration loading and management for otto.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for otto.
type Config struct {
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Power      PowerConfig      `mapstructure:"power"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Router     RouterConfig     `mapstructure:"router"`
	Backends   BackendsConfig   `mapstructure:"backends"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Heartbeat  HeartbeatConfig  `mapstructure:"heartbeat"`
	Agents     AgentsConfig     `mapstructure:"agents"`
	Sched      SchedConfig      `mapstructure:"sched"`
	Profiles   ProfilesConfig   `mapstructure:"profiles"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// PowerConfig holds power sensor and profile transition settings.
type PowerConfig struct {
	// SysfsPath is the power supply class directory to read.
	SysfsPath string `mapstructure:"sysfs_path"`
	// SampleInterval is how often the monitor samples the sensor.
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	// UpgradeSamples is how many consecutive qualifying samples a
	// less constrained profile needs before it is accepted.
	UpgradeSamples int `mapstructure:"upgrade_samples"`
	// PerformanceAbove, BalancedAbove, and EcoAbove are the battery
	// percentage thresholds between profiles.
	PerformanceAbove int `mapstructure:"performance_above"`
	BalancedAbove    int `mapstructure:"balanced_above"`
	EcoAbove         int `mapstructure:"eco_above"`
	// PerformanceOnBattery allows the PERFORMANCE profile while
	// discharging, once the battery is above PerformanceAbove. Off by
	// default: a discharging host tops out at BALANCED.
	PerformanceOnBattery bool `mapstructure:"performance_on_battery"`
}

// MemoryConfig holds tiered store aging and retention settings.
type MemoryConfig struct {
	// HotWindow is how long a record stays hot without access.
	HotWindow time.Duration `mapstructure:"hot_window"`
	// WarmWindow is how long a record stays warm before going cold.
	WarmWindow time.Duration `mapstructure:"warm_window"`
	// RetentionDays is how long cold records are kept before archive.
	RetentionDays int `mapstructure:"retention_days"`
}

// RouterConfig holds routing and retry settings.
type RouterConfig struct {
	// MaxAttempts is retries per backend call.
	MaxAttempts int `mapstructure:"max_attempts"`
	// BackoffBase is the first retry delay.
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	// BackoffCap bounds the exponential delay.
	BackoffCap time.Duration `mapstructure:"backoff_cap"`
	// ThinkTimeout is the per-backend-call ceiling.
	ThinkTimeout time.Duration `mapstructure:"think_timeout"`
	// ContextRecords is how many recent consultations enrich a bare prompt.
	ContextRecords int `mapstructure:"context_records"`
}

// BackendsConfig holds the reasoning backend endpoints.
type BackendsConfig struct {
	Remote RemoteBackendConfig `mapstructure:"remote"`
	Local  LocalBackendConfig  `mapstructure:"local"`
}

// RemoteBackendConfig holds the heavy remote backend settings.
type RemoteBackendConfig struct {
	Model      string `mapstructure:"model"`
	MaxTokens  int    `mapstructure:"max_tokens"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// LocalBackendConfig holds the light local backend settings.
type LocalBackendConfig struct {
	URL     string        `mapstructure:"url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SupervisorConfig holds agent lifecycle settings.
type SupervisorConfig struct {
	// DrainTimeout bounds how long a stopping agent may flush writes.
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
}

// HeartbeatConfig holds heartbeat reporter settings.
type HeartbeatConfig struct {
	// DrainWindow is how many power samples feed the drain-rate average.
	DrainWindow int `mapstructure:"drain_window"`
	// HistoryLimit caps stored heartbeat rows.
	HistoryLimit int `mapstructure:"history_limit"`
}

// AgentsConfig holds per-agent behavior settings.
type AgentsConfig struct {
	Monitor MonitorAgentConfig `mapstructure:"monitor"`
	Indexer IndexerAgentConfig `mapstructure:"indexer"`
	Learner LearnerAgentConfig `mapstructure:"learner"`
	Coder   CoderAgentConfig   `mapstructure:"coder"`
}

// MonitorAgentConfig holds the metrics agent settings.
type MonitorAgentConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// IndexerAgentConfig holds the indexer agent settings.
type IndexerAgentConfig struct {
	Roots    []string `mapstructure:"roots"`
	MaxFiles int      `mapstructure:"max_files"`
}

// LearnerAgentConfig holds the learner agent settings.
type LearnerAgentConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	ScanLimit int           `mapstructure:"scan_limit"`
}

// CoderAgentConfig holds the coder agent settings.
type CoderAgentConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	DedupDays int           `mapstructure:"dedup_days"`
}

// SchedConfig holds maintenance schedule expressions.
type SchedConfig struct {
	AgeSchedule    string `mapstructure:"age_schedule"`
	BackupSchedule string `mapstructure:"backup_schedule"`
	PurgeSchedule  string `mapstructure:"purge_schedule"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OTTO_LOCAL_URL)
// 2. Project config (.otto.yaml in current directory or parent)
// 3. User config (~/.config/otto/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("")

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("backends.local.url", "OTTO_LOCAL_URL")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	if err := cfg.Profiles.Validate(); err != nil {
		return nil, fmt.Errorf("validating profiles: %w", err)
	}

	return cfg, nil
}

// Save writes the user-settable keys to the user config file. Project
// overrides and defaults are not written back.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("power.sample_interval", cfg.Power.SampleInterval.String())
	v.Set("power.performance_on_battery", cfg.Power.PerformanceOnBattery)
	v.Set("memory.hot_window", cfg.Memory.HotWindow.String())
	v.Set("memory.warm_window", cfg.Memory.WarmWindow.String())
	v.Set("memory.retention_days", cfg.Memory.RetentionDays)
	v.Set("backends.remote.model", cfg.Backends.Remote.Model)
	v.Set("backends.remote.max_tokens", cfg.Backends.Remote.MaxTokens)
	v.Set("backends.local.url", cfg.Backends.Local.URL)
	v.Set("backends.local.model", cfg.Backends.Local.Model)
	v.Set("heartbeat.history_limit", cfg.Heartbeat.HistoryLimit)
	v.Set("sched.age_schedule", cfg.Sched.AgeSchedule)
	v.Set("sched.backup_schedule", cfg.Sched.BackupSchedule)
	v.Set("sched.purge_schedule", cfg.Sched.PurgeSchedule)

	return v.WriteConfig()
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	if err := cfg.Profiles.Validate(); err != nil {
		return nil, fmt.Errorf("validating profiles: %w", err)
	}

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Anthropic defaults
	v.SetDefault("anthropic.api_key", "")

	// Power sensor defaults
	v.SetDefault("power.sysfs_path", "/sys/class/power_supply")
	v.SetDefault("power.sample_interval", "30s")
	v.SetDefault("power.upgrade_samples", 2)
	v.SetDefault("power.performance_above", 80)
	v.SetDefault("power.balanced_above", 40)
	v.SetDefault("power.eco_above", 20)
	v.SetDefault("power.performance_on_battery", false)

	// Memory aging defaults
	v.SetDefault("memory.hot_window", "6h")
	v.SetDefault("memory.warm_window", "24h")
	v.SetDefault("memory.retention_days", 90)

	// Router defaults
	v.SetDefault("router.max_attempts", 3)
	v.SetDefault("router.backoff_base", "500ms")
	v.SetDefault("router.backoff_cap", "8s")
	v.SetDefault("router.think_timeout", "30s")
	v.SetDefault("router.context_records", 3)

	// Backend defaults
	v.SetDefault("backends.remote.model", "claude-sonnet-4-20250514")
	v.SetDefault("backends.remote.max_tokens", 1024)
	v.SetDefault("backends.remote.use_bedrock", false)
	v.SetDefault("backends.remote.aws_region", "")
	v.SetDefault("backends.remote.aws_profile", "")
	v.SetDefault("backends.local.url", "http://localhost:11434")
	v.SetDefault("backends.local.model", "llama3.2:3b")
	v.SetDefault("backends.local.timeout", "30s")

	// Supervisor defaults
	v.SetDefault("supervisor.drain_timeout", "10s")

	// Heartbeat defaults
	v.SetDefault("heartbeat.drain_window", 10)
	v.SetDefault("heartbeat.history_limit", 1000)

	// Agent defaults
	v.SetDefault("agents.monitor.interval", "30s")
	v.SetDefault("agents.indexer.roots", []string{"."})
	v.SetDefault("agents.indexer.max_files", 100)
	v.SetDefault("agents.learner.interval", "10m")
	v.SetDefault("agents.learner.scan_limit", 50)
	v.SetDefault("agents.coder.interval", "1m")
	v.SetDefault("agents.coder.dedup_days", 7)

	// Maintenance schedule defaults
	v.SetDefault("sched.age_schedule", "@every 10m")
	v.SetDefault("sched.backup_schedule", "30 3 * * *")
	v.SetDefault("sched.purge_schedule", "0 4 * * *")

	setProfileDefaults(v)
}

// getUserConfigDir returns the XDG config directory for otto.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "otto")
	}

	// Fall back to ~/.config/otto
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "otto")
	}
	return filepath.Join(home, ".config", "otto")
}

// findProjectConfig searches for .otto.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".otto.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
