// Package power watches the host power state and selects the active
// resource profile for the rest of the daemon.
package power

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shayc/otto/internal/events"
	"github.com/shayc/otto/pkg/models"
)

const sampleHistoryLimit = 32

// Config holds monitor tuning.
type Config struct {
	// Interval is how often the sensor is sampled.
	Interval time.Duration
	// UpgradeSamples is how many consecutive qualifying samples a less
	// constrained profile needs before it is accepted.
	UpgradeSamples int
	// Thresholds are the battery percentage profile boundaries.
	Thresholds Thresholds
	// PerformanceOnBattery allows PERFORMANCE while discharging.
	PerformanceOnBattery bool
	// Emitter receives profile and sensor events. Optional.
	Emitter *events.Emitter
	// OnChange is called synchronously after a profile transition, from
	// the sampling goroutine. Optional.
	OnChange func(prev, next models.Profile)
}

// Monitor samples the power sensor on a ticker and maintains the active
// profile with asymmetric hysteresis: a more constrained candidate is
// accepted immediately, a less constrained one must hold for
// UpgradeSamples consecutive samples.
type Monitor struct {
	sensor               Sensor
	interval             time.Duration
	upgradeSamples       int
	thresholds           Thresholds
	performanceOnBattery bool
	emitter              *events.Emitter
	onChange             func(prev, next models.Profile)

	active atomic.Value

	mu           sync.Mutex
	established  bool
	sensorDown   bool
	haveSample   bool
	lastSample   models.PowerSample
	pending      models.Profile
	pendingCount int
	history      []models.PowerSample
}

// NewMonitor creates a monitor over the sensor. Until the first sample
// succeeds the active profile is CRITICAL.
func NewMonitor(sensor Sensor, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.UpgradeSamples < 1 {
		cfg.UpgradeSamples = 2
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}

	m := &Monitor{
		sensor:               sensor,
		interval:             cfg.Interval,
		upgradeSamples:       cfg.UpgradeSamples,
		thresholds:           cfg.Thresholds,
		performanceOnBattery: cfg.PerformanceOnBattery,
		emitter:              cfg.Emitter,
		onChange:             cfg.OnChange,
	}
	m.active.Store(models.ProfileCritical)
	return m
}

// CurrentProfile returns the active profile. Lock-free; safe from any
// goroutine.
func (m *Monitor) CurrentProfile() models.Profile {
	return m.active.Load().(models.Profile)
}

// Prime takes one synchronous sample so the caller sees an established
// profile before the sampling loop starts.
func (m *Monitor) Prime() {
	m.sampleOnce()
}

// Run samples the sensor until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.sampleOnce()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sampleOnce()
		}
	}
}

// LastSample returns the most recent successful reading.
func (m *Monitor) LastSample() (models.PowerSample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSample, m.haveSample
}

// RecentSamples returns a copy of the retained sample history, oldest
// first. The heartbeat reporter derives the drain rate from it.
func (m *Monitor) RecentSamples() []models.PowerSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PowerSample, len(m.history))
	copy(out, m.history)
	return out
}

// SensorHealthy reports whether the last sample attempt succeeded.
func (m *Monitor) SensorHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.sensorDown
}

func (m *Monitor) sampleOnce() {
	sample, err := m.sensor.Sample()
	if err != nil {
		m.handleSensorFailure(err)
		return
	}

	m.mu.Lock()
	recovered := m.sensorDown
	m.sensorDown = false
	m.lastSample = sample
	m.haveSample = true
	m.history = append(m.history, sample)
	if len(m.history) > sampleHistoryLimit {
		m.history = m.history[len(m.history)-sampleHistoryLimit:]
	}
	m.mu.Unlock()

	if recovered {
		log.Printf("[power] sensor recovered (battery %d%%, ac=%v)", sample.BatteryPercent, sample.OnAC)
		m.emit(events.Event{
			Type:           events.EventSensorRecovered,
			BatteryPercent: sample.BatteryPercent,
			OnAC:           sample.OnAC,
		})
	}

	m.consider(CandidateProfile(sample, m.thresholds, m.performanceOnBattery), sample)
}

// handleSensorFailure drops to CRITICAL and holds it. Recovery goes
// back through normal upgrade hysteresis.
func (m *Monitor) handleSensorFailure(err error) {
	m.mu.Lock()
	firstFailure := !m.sensorDown
	m.sensorDown = true
	m.established = true
	m.pending = ""
	m.pendingCount = 0
	m.mu.Unlock()

	if firstFailure {
		log.Printf("[power] sample failed, holding %s: %v", models.ProfileCritical, err)
		m.emit(events.Event{
			Type:           events.EventSampleFailed,
			BatteryPercent: models.BatteryUnknown,
			Error:          err,
		})
	}

	m.transition(models.ProfileCritical, models.PowerSample{BatteryPercent: models.BatteryUnknown})
}

func (m *Monitor) consider(candidate models.Profile, sample models.PowerSample) {
	m.mu.Lock()

	// The first successful sample establishes the profile outright;
	// CRITICAL before it is a default, not an accepted reading.
	if !m.established {
		m.established = true
		m.mu.Unlock()
		m.transition(candidate, sample)
		return
	}

	active := m.CurrentProfile()
	if candidate == active {
		m.pending = ""
		m.pendingCount = 0
		m.mu.Unlock()
		return
	}

	if candidate.MoreConstrainedThan(active) {
		m.pending = ""
		m.pendingCount = 0
		m.mu.Unlock()
		m.transition(candidate, sample)
		return
	}

	// Upgrade path: the candidate must hold across consecutive samples
	if candidate == m.pending {
		m.pendingCount++
	} else {
		m.pending = candidate
		m.pendingCount = 1
	}
	ready := m.pendingCount >= m.upgradeSamples
	if ready {
		m.pending = ""
		m.pendingCount = 0
	}
	m.mu.Unlock()

	if ready {
		m.transition(candidate, sample)
	}
}

// transition accepts a profile, fires the change callback, and emits
// the change event. Idempotent when the profile is unchanged.
func (m *Monitor) transition(next models.Profile, sample models.PowerSample) {
	prev := m.CurrentProfile()
	if next == prev {
		return
	}
	m.active.Store(next)

	log.Printf("[power] profile %s -> %s (battery %d%%, ac=%v)", prev, next, sample.BatteryPercent, sample.OnAC)
	if m.onChange != nil {
		m.onChange(prev, next)
	}
	m.emit(events.Event{
		Type:            events.EventProfileChanged,
		Profile:         next,
		PreviousProfile: prev,
		BatteryPercent:  sample.BatteryPercent,
		OnAC:            sample.OnAC,
	})
}

func (m *Monitor) emit(e events.Event) {
	if m.emitter != nil {
		m.emitter.Emit(e)
	}
}
