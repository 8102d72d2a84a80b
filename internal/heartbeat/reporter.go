// Package heartbeat assembles periodic status snapshots and persists
// them to the heartbeats table for the status command and postmortem
// inspection.
package heartbeat

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/shayc/otto/internal/config"
	"github.com/shayc/otto/internal/events"
	"github.com/shayc/otto/internal/memory"
	"github.com/shayc/otto/pkg/models"
)

const (
	defaultDrainWindow  = 10
	defaultHistoryLimit = 1000
	fallbackInterval    = 60 * time.Second
)

// PowerSource supplies battery readings. Satisfied by the power monitor.
type PowerSource interface {
	LastSample() (models.PowerSample, bool)
	RecentSamples() []models.PowerSample
}

// AgentSource supplies the active profile and the running roster.
// Satisfied by the supervisor.
type AgentSource interface {
	ActiveProfile() models.Profile
	Running() []models.AgentKind
}

// MetricsSource supplies the monitor agent's cumulative sample count.
type MetricsSource interface {
	MetricsCollected() int64
}

// Usage supplies cumulative remote token totals. Satisfied by the
// backend token tracker.
type Usage interface {
	Total() (input, output int64)
	Cost() float64
}

// Config holds reporter wiring.
type Config struct {
	// Store persists snapshots and supplies tier counts.
	Store *memory.Store
	// Power supplies the latest reading and the sample history.
	Power PowerSource
	// Agents supplies the active profile and running agents.
	Agents AgentSource
	// Metrics supplies the monitor agent's sample count. Optional.
	Metrics MetricsSource
	// Tokens supplies remote usage totals. Optional.
	Tokens Usage
	// Profiles maps the active profile to its monitoring interval.
	Profiles *config.ProfilesConfig
	// DrainWindow is how many trailing power samples feed the drain
	// rate estimate.
	DrainWindow int
	// HistoryLimit is how many snapshots the heartbeats table retains.
	HistoryLimit int
	// Emitter receives a heartbeat event per snapshot. Optional.
	Emitter *events.Emitter
	// Events delivers profile changes so the cadence re-arms without
	// waiting out the previous interval. Optional.
	Events <-chan events.Event
	// StartedAt anchors the uptime field.
	StartedAt time.Time
}

// Reporter writes one snapshot per beat on the active profile's
// monitoring cadence.
type Reporter struct {
	store        *memory.Store
	power        PowerSource
	agents       AgentSource
	metrics      MetricsSource
	tokens       Usage
	profiles     *config.ProfilesConfig
	drainWindow  int
	historyLimit int
	emitter      *events.Emitter
	events       <-chan events.Event
	startedAt    time.Time
}

// NewReporter creates a reporter over the given sources.
func NewReporter(cfg Config) *Reporter {
	if cfg.DrainWindow <= 0 {
		cfg.DrainWindow = defaultDrainWindow
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.Profiles == nil {
		cfg.Profiles = config.DefaultProfiles()
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}

	return &Reporter{
		store:        cfg.Store,
		power:        cfg.Power,
		agents:       cfg.Agents,
		metrics:      cfg.Metrics,
		tokens:       cfg.Tokens,
		profiles:     cfg.Profiles,
		drainWindow:  cfg.DrainWindow,
		historyLimit: cfg.HistoryLimit,
		emitter:      cfg.Emitter,
		events:       cfg.Events,
		startedAt:    cfg.StartedAt,
	}
}

// Run beats until the context is cancelled. The first beat happens
// immediately; after that the cadence follows the active profile's
// monitoring interval, re-armed when a profile change event arrives.
func (r *Reporter) Run(ctx context.Context) {
	r.Beat()

	interval := r.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Beat()
		case ev, ok := <-r.events:
			if !ok {
				r.events = nil
				continue
			}
			if ev.Type != events.EventProfileChanged {
				continue
			}
			if next := r.interval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// Beat assembles one snapshot, persists it, and trims history. The
// daemon also calls it directly for a final snapshot at shutdown.
func (r *Reporter) Beat() {
	snap := r.snapshot()

	if err := r.store.DB().InsertHeartbeat(snap); err != nil {
		log.Printf("[heartbeat] WARNING: persist failed: %v", err)
		return
	}
	if _, err := r.store.DB().PruneHeartbeats(r.historyLimit); err != nil {
		log.Printf("[heartbeat] WARNING: prune failed: %v", err)
	}

	battery := "n/a"
	if snap.BatteryPercent >= 0 {
		battery = fmt.Sprintf("%d%%", snap.BatteryPercent)
	}
	left := "n/a"
	if snap.EstimatedRuntimeHours >= 0 {
		left = fmt.Sprintf("%.1fh", snap.EstimatedRuntimeHours)
	}
	log.Printf("[heartbeat] profile=%s agents=%d hot=%d battery=%s ac=%v runtime=%s heap=%dMB",
		snap.Profile, snap.RunningAgents, snap.HotRecords, battery, snap.OnAC, left,
		snap.MemoryFootprintBytes>>20)

	if r.emitter != nil {
		r.emitter.Emit(events.Event{
			Type:           events.EventHeartbeat,
			Profile:        snap.Profile,
			BatteryPercent: snap.BatteryPercent,
			OnAC:           snap.OnAC,
			Snapshot:       snap,
		})
	}
}

func (r *Reporter) snapshot() *models.Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	snap := &models.Snapshot{
		Uptime:                time.Since(r.startedAt),
		MemoryFootprintBytes:  ms.HeapAlloc,
		RunningAgents:         len(r.agents.Running()),
		Profile:               r.agents.ActiveProfile(),
		BatteryPercent:        models.BatteryUnknown,
		EstimatedRuntimeHours: models.RuntimeUnknown,
		TakenAt:               time.Now().UTC(),
	}

	if stats, err := r.store.Stats(); err != nil {
		log.Printf("[heartbeat] WARNING: memory stats failed: %v", err)
	} else {
		snap.HotRecords = stats.ByTier[models.TierHot]
	}

	if last, ok := r.power.LastSample(); ok {
		snap.BatteryPercent = last.BatteryPercent
		snap.OnAC = last.OnAC
		snap.EstimatedRuntimeHours = estimateRuntime(r.power.RecentSamples(), r.drainWindow, last)
	}

	if r.metrics != nil {
		snap.MetricsCollected = r.metrics.MetricsCollected()
	}
	if r.tokens != nil {
		in, out := r.tokens.Total()
		snap.TokensUsed = in + out
		snap.CostUSD = r.tokens.Cost()
	}

	return snap
}

func (r *Reporter) interval() time.Duration {
	pc := r.profiles.Get(r.agents.ActiveProfile())
	if pc == nil || pc.MonitoringInterval <= 0 {
		return fallbackInterval
	}
	return pc.MonitoringInterval
}
