package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shayc/otto/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify otto configuration.

Without arguments, displays the resolved configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the value in the user config.

Configuration is stored at ~/.config/otto/config.yaml
Project-specific overrides can be placed in .otto.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .otto.yaml in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := writeProjectConfig(".")
		if err != nil {
			return err
		}
		if path == "" {
			fmt.Println(".otto.yaml already exists, leaving it alone")
			return nil
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}

// displayAllConfig prints the resolved configuration values.
func displayAllConfig(cfg *config.Config) {
	// Mask API key if set
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("power.sysfs_path: %s\n", cfg.Power.SysfsPath)
	fmt.Printf("power.sample_interval: %s\n", cfg.Power.SampleInterval)
	fmt.Printf("power.performance_on_battery: %t\n", cfg.Power.PerformanceOnBattery)
	fmt.Printf("memory.hot_window: %s\n", cfg.Memory.HotWindow)
	fmt.Printf("memory.warm_window: %s\n", cfg.Memory.WarmWindow)
	fmt.Printf("memory.retention_days: %d\n", cfg.Memory.RetentionDays)
	fmt.Printf("backends.remote.model: %s\n", cfg.Backends.Remote.Model)
	fmt.Printf("backends.remote.max_tokens: %d\n", cfg.Backends.Remote.MaxTokens)
	fmt.Printf("backends.local.url: %s\n", cfg.Backends.Local.URL)
	fmt.Printf("backends.local.model: %s\n", cfg.Backends.Local.Model)
	fmt.Printf("heartbeat.history_limit: %d\n", cfg.Heartbeat.HistoryLimit)
	fmt.Printf("sched.age_schedule: %s\n", cfg.Sched.AgeSchedule)
	fmt.Printf("sched.backup_schedule: %s\n", cfg.Sched.BackupSchedule)
	fmt.Printf("sched.purge_schedule: %s\n", cfg.Sched.PurgeSchedule)
	for _, line := range profileLines(cfg) {
		fmt.Println(line)
	}
}

// profileLines renders the per-profile numbers.
func profileLines(cfg *config.Config) []string {
	var lines []string
	add := func(name string, pc *config.ProfileConfig) {
		if pc == nil {
			return
		}
		lines = append(lines, fmt.Sprintf(
			"profiles.%s: policy=%s interval=%s budget=%dMB ttl=%s cpu=%d%%",
			name, pc.Policy, pc.MonitoringInterval, pc.MemoryBudgetMB,
			pc.CacheTTL, pc.CPUPercentLimit))
	}
	add("performance", cfg.Profiles.Performance)
	add("balanced", cfg.Profiles.Balanced)
	add("eco", cfg.Profiles.Eco)
	add("critical", cfg.Profiles.Critical)
	return lines
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "power.sample_interval":
		return cfg.Power.SampleInterval.String(), nil
	case "power.performance_on_battery":
		return strconv.FormatBool(cfg.Power.PerformanceOnBattery), nil
	case "memory.hot_window":
		return cfg.Memory.HotWindow.String(), nil
	case "memory.warm_window":
		return cfg.Memory.WarmWindow.String(), nil
	case "memory.retention_days":
		return strconv.Itoa(cfg.Memory.RetentionDays), nil
	case "backends.remote.model":
		return cfg.Backends.Remote.Model, nil
	case "backends.remote.max_tokens":
		return strconv.Itoa(cfg.Backends.Remote.MaxTokens), nil
	case "backends.local.url":
		return cfg.Backends.Local.URL, nil
	case "backends.local.model":
		return cfg.Backends.Local.Model, nil
	case "heartbeat.history_limit":
		return strconv.Itoa(cfg.Heartbeat.HistoryLimit), nil
	case "sched.age_schedule":
		return cfg.Sched.AgeSchedule, nil
	case "sched.backup_schedule":
		return cfg.Sched.BackupSchedule, nil
	case "sched.purge_schedule":
		return cfg.Sched.PurgeSchedule, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "power.sample_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for sample_interval: %w", err)
		}
		cfg.Power.SampleInterval = d
	case "power.performance_on_battery":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for performance_on_battery: %w", err)
		}
		cfg.Power.PerformanceOnBattery = b
	case "memory.hot_window":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for hot_window: %w", err)
		}
		cfg.Memory.HotWindow = d
	case "memory.warm_window":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for warm_window: %w", err)
		}
		cfg.Memory.WarmWindow = d
	case "memory.retention_days":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for retention_days: %w", err)
		}
		cfg.Memory.RetentionDays = n
	case "backends.remote.model":
		cfg.Backends.Remote.Model = value
	case "backends.remote.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_tokens: %w", err)
		}
		cfg.Backends.Remote.MaxTokens = n
	case "backends.local.url":
		cfg.Backends.Local.URL = value
	case "backends.local.model":
		cfg.Backends.Local.Model = value
	case "heartbeat.history_limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for history_limit: %w", err)
		}
		cfg.Heartbeat.HistoryLimit = n
	case "sched.age_schedule":
		cfg.Sched.AgeSchedule = value
	case "sched.backup_schedule":
		cfg.Sched.BackupSchedule = value
	case "sched.purge_schedule":
		cfg.Sched.PurgeSchedule = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// writeProjectConfig creates .otto.yaml unless one exists. Returns the
// written path, or empty when the file was already there.
func writeProjectConfig(dir string) (string, error) {
	configPath := filepath.Join(dir, ".otto.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return "", nil
	}

	template := `# Otto Project Configuration
# This file overrides defaults from ~/.config/otto/config.yaml

# power:
#   sample_interval: 30s
#   performance_on_battery: false

# memory:
#   retention_days: 90

# backends:
#   remote:
#     model: claude-sonnet-4-20250514
#   local:
#     url: http://localhost:11434
#     model: llama3.2:3b

# profiles:
#   eco:
#     monitoring_interval: 300s
#     memory_budget_mb: 800
`

	if err := os.WriteFile(configPath, []byte(template), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", configPath, err)
	}
	return configPath, nil
}
