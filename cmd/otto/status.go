package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shayc/otto/internal/backend"
	"github.com/shayc/otto/internal/config"
	"github.com/shayc/otto/internal/learning"
	"github.com/shayc/otto/internal/memory"
	"github.com/shayc/otto/internal/tui"
	"github.com/shayc/otto/pkg/models"
)

var (
	statusWatch   bool
	statusRefresh time.Duration
	statusNoPing  bool
)

const pingTimeout = 3 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's latest heartbeat",
	Long: `Display the state of the otto daemon.

Shows:
  - Active profile, power state, and estimated runtime
  - Agent roster and running count
  - Memory tier and token usage
  - Backend availability and top learned patterns

With --watch, opens a live dashboard instead.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Open the live dashboard")
	statusCmd.Flags().DurationVar(&statusRefresh, "refresh", 2*time.Second, "Dashboard refresh interval")
	statusCmd.Flags().BoolVar(&statusNoPing, "no-ping", false, "Skip backend availability probes")
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if statusWatch {
		program, _ := tui.NewStatusProgram(db, statusRefresh)
		_, err := program.Run()
		return err
	}

	snap, err := db.LatestHeartbeat()
	if errors.Is(err, memory.ErrNotFound) {
		fmt.Println("No heartbeats yet. Run 'otto run' to start the daemon.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("latest heartbeat: %w", err)
	}

	cfg, cfgErr := config.Load()

	var pc *config.ProfileConfig
	if cfgErr == nil {
		pc = cfg.Profiles.Get(snap.Profile)
	}
	displaySnapshot(snap, pc)

	if !statusNoPing {
		fmt.Println()
		displayBackends(cfg, cfgErr)
	}

	fmt.Println()
	if err := displayLearnings(db); err != nil {
		return err
	}

	fmt.Println()
	return displayRecentBeats(db)
}

func displaySnapshot(s *models.Snapshot, pc *config.ProfileConfig) {
	fmt.Printf("Profile: %s\n", s.Profile)
	if pc != nil {
		fmt.Printf("  Policy: %s, cpu limit %d%% (advisory)\n", pc.Policy, pc.CPUPercentLimit)
	}
	fmt.Printf("  Uptime: %s\n", formatDuration(s.Uptime))

	if s.BatteryPercent >= 0 {
		state := "discharging"
		if s.OnAC {
			state = "charging"
		}
		fmt.Printf("  Battery: %d%% (%s)\n", s.BatteryPercent, state)
	} else if s.OnAC {
		fmt.Printf("  Battery: AC power\n")
	} else {
		fmt.Printf("  Battery: unknown\n")
	}

	if s.EstimatedRuntimeHours >= 0 {
		fmt.Printf("  Est. runtime: %.1fh\n", s.EstimatedRuntimeHours)
	}

	fmt.Printf("  Agents: %d running\n", s.RunningAgents)
	for _, kind := range models.AllAgentKinds() {
		if kind.EligibleUnder(s.Profile) {
			fmt.Printf("    %s: on roster\n", strings.ToLower(string(kind)))
		} else {
			fmt.Printf("    %s: parked until %s\n", strings.ToLower(string(kind)), kind.MinimumProfile())
		}
	}

	fmt.Printf("  Memory: %d hot records, %d MB heap\n",
		s.HotRecords, s.MemoryFootprintBytes>>20)
	fmt.Printf("  Tokens: %s ($%.4f)\n", formatNumber(s.TokensUsed), s.CostUSD)
	fmt.Printf("  Metrics: %d collected\n", s.MetricsCollected)
	fmt.Printf("  Last beat: %s ago\n", formatDuration(time.Since(s.TakenAt)))
}

// displayBackends probes each configured backend. The remote probe is
// a real API call, so --no-ping skips this section.
func displayBackends(cfg *config.Config, loadErr error) {
	if loadErr != nil {
		fmt.Printf("Backends: config error: %v\n", loadErr)
		return
	}

	fmt.Println("Backends:")

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	remote, err := backend.NewRemote(backend.RemoteConfig{
		Model:      cfg.Backends.Remote.Model,
		MaxTokens:  cfg.Backends.Remote.MaxTokens,
		APIKey:     cfg.Anthropic.APIKey,
		UseBedrock: cfg.Backends.Remote.UseBedrock,
		AWSRegion:  cfg.Backends.Remote.AWSRegion,
		AWSProfile: cfg.Backends.Remote.AWSProfile,
	})
	switch {
	case err != nil:
		fmt.Printf("  remote: not configured (%v)\n", err)
	case remote.Ping(ctx) != nil:
		fmt.Printf("  remote: unreachable (%s)\n", remote.Model())
	default:
		fmt.Printf("  remote: ok (%s)\n", remote.Model())
	}

	local, err := backend.NewLocal(backend.LocalConfig{
		URL:     cfg.Backends.Local.URL,
		Model:   cfg.Backends.Local.Model,
		Timeout: cfg.Backends.Local.Timeout,
	})
	switch {
	case err != nil:
		fmt.Printf("  local: not configured (%v)\n", err)
	case local.Ping(ctx) != nil:
		fmt.Printf("  local: unreachable (%s)\n", cfg.Backends.Local.URL)
	default:
		fmt.Printf("  local: ok (%s)\n", cfg.Backends.Local.Model)
	}
}

func displayLearnings(db *memory.DB) error {
	learnings, err := learning.NewStore(db).Top(5)
	if err != nil {
		return fmt.Errorf("top learnings: %w", err)
	}
	if len(learnings) == 0 {
		return nil
	}

	fmt.Println("Top Learnings:")
	for _, l := range learnings {
		fmt.Printf("  %s: seen %d times, last %s ago\n",
			l.Pattern, l.Occurrences, formatDuration(time.Since(l.LastSeen)))
	}
	return nil
}

func displayRecentBeats(db *memory.DB) error {
	snaps, err := db.RecentHeartbeats(5)
	if err != nil {
		return fmt.Errorf("recent heartbeats: %w", err)
	}
	if len(snaps) <= 1 {
		return nil
	}

	fmt.Println("Recent Beats:")
	for _, s := range snaps {
		battery := "ac"
		if s.BatteryPercent >= 0 {
			battery = fmt.Sprintf("%d%%", s.BatteryPercent)
		}
		fmt.Printf("  %s: %s %s, %d agents\n",
			s.TakenAt.Local().Format("15:04:05"), s.Profile, battery, s.RunningAgents)
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

// formatNumber formats a number with commas.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	offset := len(s) % 3
	if offset > 0 {
		result.WriteString(s[:offset])
		if len(s) > offset {
			result.WriteString(",")
		}
	}
	for i := offset; i < len(s); i += 3 {
		result.WriteString(s[i : i+3])
		if i+3 < len(s) {
			result.WriteString(",")
		}
	}
	return result.String()
}
