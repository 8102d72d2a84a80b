package agents

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shayc/otto/internal/config"
	"github.com/shayc/otto/pkg/models"
)

const (
	defaultMonitorInterval = 30 * time.Second
	// alertHeapFraction of the active profile's memory budget triggers
	// a heap alert.
	alertHeapFraction   = 0.85
	alertGoroutineLimit = 500
)

// MetricsSample is one runtime reading taken by the monitor.
type MetricsSample struct {
	HeapAllocBytes uint64
	Goroutines     int
	HotRecords     int
	SampledAt      time.Time
}

// Monitor samples runtime metrics on a fixed cadence and writes alert
// TASK records when the process outgrows the active profile.
type Monitor struct {
	base
	store    Memory
	profiles *config.ProfilesConfig
	active   ProfileSource
	interval time.Duration
	records  *taskLog

	collected atomic.Int64

	mu   sync.Mutex
	last MetricsSample
	have bool
}

// NewMonitor creates the metrics agent. The active profile's memory
// budget is re-read on every sample so alerts follow profile changes.
func NewMonitor(store Memory, profiles *config.ProfilesConfig, active ProfileSource, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = defaultMonitorInterval
	}
	return &Monitor{
		base:     base{kind: models.AgentMonitor},
		store:    store,
		profiles: profiles,
		active:   active,
		interval: interval,
		records:  newTaskLog(store, models.AgentMonitor),
	}
}

// Run samples once immediately, then on every tick until the context
// is canceled.
func (m *Monitor) Run(ctx context.Context) {
	m.sample(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

// Drain flushes any buffered alert records.
func (m *Monitor) Drain(ctx context.Context) error {
	return m.records.flush(ctx)
}

func (m *Monitor) sample(ctx context.Context) {
	m.beat()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	goroutines := runtime.NumGoroutine()

	hot := 0
	if stats, err := m.store.Stats(); err != nil {
		log.Printf("[monitor] WARNING: stats read failed: %v", err)
	} else {
		hot = stats.ByTier[models.TierHot]
	}

	m.collected.Add(1)
	m.mu.Lock()
	m.last = MetricsSample{
		HeapAllocBytes: ms.HeapAlloc,
		Goroutines:     goroutines,
		HotRecords:     hot,
		SampledAt:      time.Now().UTC(),
	}
	m.have = true
	m.mu.Unlock()

	var alerts []string
	if pc := m.profiles.Get(m.active.ActiveProfile()); pc != nil {
		limit := uint64(float64(pc.BudgetBytes()) * alertHeapFraction)
		if ms.HeapAlloc > limit {
			alerts = append(alerts, fmt.Sprintf("heap %d MB above %d%% of %d MB budget",
				ms.HeapAlloc/(1024*1024), int(alertHeapFraction*100), pc.MemoryBudgetMB))
		}
	}
	if goroutines > alertGoroutineLimit {
		alerts = append(alerts, fmt.Sprintf("goroutines %d above limit %d", goroutines, alertGoroutineLimit))
	}

	if len(alerts) > 0 {
		msg := strings.Join(alerts, "; ")
		log.Printf("[monitor] ALERT: %s", msg)
		m.records.add(msg, "")
		m.taskDone()
	}

	if err := m.records.flush(ctx); err != nil {
		log.Printf("[monitor] WARNING: task flush failed: %v", err)
	}
}

// MetricsCollected returns how many samples have been taken.
func (m *Monitor) MetricsCollected() int64 {
	return m.collected.Load()
}

// LastMetrics returns the most recent sample.
func (m *Monitor) LastMetrics() (MetricsSample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.have
}
