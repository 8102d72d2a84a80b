package heartbeat

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shayc/otto/internal/backend"
	"github.com/shayc/otto/internal/config"
	"github.com/shayc/otto/internal/events"
	"github.com/shayc/otto/internal/memory"
	"github.com/shayc/otto/pkg/models"
)

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	db, err := memory.Open(filepath.Join(t.TempDir(), "otto.db"))
	if err != nil {
		t.Fatalf("Open() error = %v, want nil", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v, want nil", err)
	}
	store := memory.NewStore(db, 0)
	t.Cleanup(func() { store.Close() })
	return store
}

func heartbeatCount(t *testing.T, store *memory.Store) int {
	t.Helper()
	snaps, err := store.DB().RecentHeartbeats(100)
	if err != nil {
		t.Fatalf("RecentHeartbeats() error = %v, want nil", err)
	}
	return len(snaps)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}

type fakePower struct {
	mu      sync.Mutex
	last    models.PowerSample
	have    bool
	history []models.PowerSample
}

func (p *fakePower) LastSample() (models.PowerSample, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.have
}

func (p *fakePower) RecentSamples() []models.PowerSample {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.PowerSample, len(p.history))
	copy(out, p.history)
	return out
}

type fakeAgents struct {
	mu      sync.Mutex
	profile models.Profile
	running []models.AgentKind
}

func (a *fakeAgents) ActiveProfile() models.Profile {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.profile
}

func (a *fakeAgents) Running() []models.AgentKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *fakeAgents) setProfile(p models.Profile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.profile = p
}

type fakeMetrics struct{ n int64 }

func (f fakeMetrics) MetricsCollected() int64 { return f.n }

func sampleAt(base time.Time, minute, pct int) models.PowerSample {
	return models.PowerSample{
		BatteryPercent: pct,
		SampledAt:      base.Add(time.Duration(minute) * time.Minute),
	}
}

func TestEstimateRuntime_SteadyDischarge(t *testing.T) {
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	samples := []models.PowerSample{
		sampleAt(base, 0, 90),
		sampleAt(base, 60, 80),
		sampleAt(base, 120, 70),
	}

	got := estimateRuntime(samples, 10, samples[2])
	if math.Abs(got-7.0) > 0.001 {
		t.Errorf("estimateRuntime() = %v, want 7.0", got)
	}
}

func TestEstimateRuntime_OnAC(t *testing.T) {
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	samples := []models.PowerSample{
		sampleAt(base, 0, 90),
		sampleAt(base, 60, 80),
	}
	last := samples[1]
	last.OnAC = true

	if got := estimateRuntime(samples, 10, last); got != models.RuntimeUnknown {
		t.Errorf("estimateRuntime() = %v, want %v", got, models.RuntimeUnknown)
	}
}

func TestEstimateRuntime_UnknownBattery(t *testing.T) {
	last := models.PowerSample{BatteryPercent: models.BatteryUnknown}

	if got := estimateRuntime(nil, 10, last); got != models.RuntimeUnknown {
		t.Errorf("estimateRuntime() = %v, want %v", got, models.RuntimeUnknown)
	}
}

func TestEstimateRuntime_TooFewSamples(t *testing.T) {
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	samples := []models.PowerSample{sampleAt(base, 0, 90)}

	if got := estimateRuntime(samples, 10, samples[0]); got != models.RuntimeUnknown {
		t.Errorf("estimateRuntime() = %v, want %v", got, models.RuntimeUnknown)
	}
}

func TestEstimateRuntime_IgnoresChargingPairs(t *testing.T) {
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	charging := []models.PowerSample{
		sampleAt(base, 0, 70),
		sampleAt(base, 60, 80),
	}
	if got := estimateRuntime(charging, 10, charging[1]); got != models.RuntimeUnknown {
		t.Errorf("charging history: estimateRuntime() = %v, want %v", got, models.RuntimeUnknown)
	}

	mixed := []models.PowerSample{
		sampleAt(base, 0, 80),
		sampleAt(base, 60, 85),
		sampleAt(base, 120, 75),
	}
	if got := estimateRuntime(mixed, 10, mixed[2]); math.Abs(got-7.5) > 0.001 {
		t.Errorf("mixed history: estimateRuntime() = %v, want 7.5", got)
	}
}

func TestEstimateRuntime_WindowTrimsHistory(t *testing.T) {
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	samples := []models.PowerSample{
		sampleAt(base, 0, 90),
		sampleAt(base, 60, 30),
		sampleAt(base, 120, 20),
		sampleAt(base, 180, 10),
	}

	// Only the last two samples are inside the window, so the steep
	// early pair does not skew the rate.
	got := estimateRuntime(samples, 2, samples[3])
	if math.Abs(got-1.0) > 0.001 {
		t.Errorf("estimateRuntime() = %v, want 1.0", got)
	}
}

func TestEstimateRuntime_SkipsBadReadings(t *testing.T) {
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	samples := []models.PowerSample{
		sampleAt(base, 0, 80),
		sampleAt(base, 60, models.BatteryUnknown),
		sampleAt(base, 120, 70),
		sampleAt(base, 180, 60),
	}

	got := estimateRuntime(samples, 10, samples[3])
	if math.Abs(got-6.0) > 0.001 {
		t.Errorf("estimateRuntime() = %v, want 6.0", got)
	}
}

func TestEstimateRuntime_IgnoresZeroDurationPairs(t *testing.T) {
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	samples := []models.PowerSample{
		sampleAt(base, 0, 80),
		sampleAt(base, 0, 75),
	}

	if got := estimateRuntime(samples, 10, samples[1]); got != models.RuntimeUnknown {
		t.Errorf("estimateRuntime() = %v, want %v", got, models.RuntimeUnknown)
	}
}

func TestReporter_Beat(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		rec := &models.MemoryRecord{
			Kind:      models.KindConsultation,
			AgentKind: models.AgentMonitor,
			Payload:   "what changed",
		}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error = %v, want nil", err)
		}
	}

	now := time.Now()
	power := &fakePower{
		last: models.PowerSample{BatteryPercent: 75, SampledAt: now},
		have: true,
		history: []models.PowerSample{
			{BatteryPercent: 80, SampledAt: now.Add(-30 * time.Minute)},
			{BatteryPercent: 75, SampledAt: now},
		},
	}
	tokens := backend.NewTokenTracker()
	tokens.Add(1200, 300)

	r := NewReporter(Config{
		Store:     store,
		Power:     power,
		Agents:    &fakeAgents{profile: models.ProfileBalanced, running: []models.AgentKind{models.AgentMonitor, models.AgentIndexer}},
		Metrics:   fakeMetrics{n: 42},
		Tokens:    tokens,
		StartedAt: now.Add(-90 * time.Second),
	})
	r.Beat()

	snap, err := store.DB().LatestHeartbeat()
	if err != nil {
		t.Fatalf("LatestHeartbeat() error = %v, want nil", err)
	}
	if snap.RunningAgents != 2 {
		t.Errorf("RunningAgents = %d, want 2", snap.RunningAgents)
	}
	if snap.HotRecords != 2 {
		t.Errorf("HotRecords = %d, want 2", snap.HotRecords)
	}
	if snap.BatteryPercent != 75 {
		t.Errorf("BatteryPercent = %d, want 75", snap.BatteryPercent)
	}
	if snap.OnAC {
		t.Error("OnAC = true, want false")
	}
	if snap.Profile != models.ProfileBalanced {
		t.Errorf("Profile = %s, want %s", snap.Profile, models.ProfileBalanced)
	}
	if math.Abs(snap.EstimatedRuntimeHours-7.5) > 0.001 {
		t.Errorf("EstimatedRuntimeHours = %v, want 7.5", snap.EstimatedRuntimeHours)
	}
	if snap.MetricsCollected != 42 {
		t.Errorf("MetricsCollected = %d, want 42", snap.MetricsCollected)
	}
	if snap.TokensUsed != 1500 {
		t.Errorf("TokensUsed = %d, want 1500", snap.TokensUsed)
	}
	if math.Abs(snap.CostUSD-0.0081) > 1e-9 {
		t.Errorf("CostUSD = %v, want 0.0081", snap.CostUSD)
	}
	if snap.Uptime < 90*time.Second {
		t.Errorf("Uptime = %v, want at least 90s", snap.Uptime)
	}
	if snap.MemoryFootprintBytes == 0 {
		t.Error("MemoryFootprintBytes = 0, want nonzero")
	}
	if snap.TakenAt.IsZero() {
		t.Error("TakenAt is zero")
	}
}

func TestReporter_Beat_NoPowerSample(t *testing.T) {
	store := newTestStore(t)
	r := NewReporter(Config{
		Store:  store,
		Power:  &fakePower{},
		Agents: &fakeAgents{profile: models.ProfileCritical},
	})
	r.Beat()

	snap, err := store.DB().LatestHeartbeat()
	if err != nil {
		t.Fatalf("LatestHeartbeat() error = %v, want nil", err)
	}
	if snap.BatteryPercent != models.BatteryUnknown {
		t.Errorf("BatteryPercent = %d, want %d", snap.BatteryPercent, models.BatteryUnknown)
	}
	if snap.EstimatedRuntimeHours != models.RuntimeUnknown {
		t.Errorf("EstimatedRuntimeHours = %v, want %v", snap.EstimatedRuntimeHours, models.RuntimeUnknown)
	}
	if snap.TokensUsed != 0 {
		t.Errorf("TokensUsed = %d, want 0", snap.TokensUsed)
	}
}

func TestReporter_Beat_EmitsEvent(t *testing.T) {
	store := newTestStore(t)
	emitter := events.NewEmitter(8)
	defer emitter.Close()

	r := NewReporter(Config{
		Store:   store,
		Power:   &fakePower{},
		Agents:  &fakeAgents{profile: models.ProfileEco},
		Emitter: emitter,
	})
	r.Beat()

	select {
	case ev := <-emitter.Events():
		if ev.Type != events.EventHeartbeat {
			t.Errorf("Type = %s, want %s", ev.Type, events.EventHeartbeat)
		}
		if ev.Snapshot == nil {
			t.Fatal("Snapshot is nil")
		}
		if ev.Snapshot.Profile != models.ProfileEco {
			t.Errorf("Snapshot.Profile = %s, want %s", ev.Snapshot.Profile, models.ProfileEco)
		}
	default:
		t.Fatal("no event emitted")
	}
}

func TestReporter_Beat_PrunesHistory(t *testing.T) {
	store := newTestStore(t)
	r := NewReporter(Config{
		Store:        store,
		Power:        &fakePower{},
		Agents:       &fakeAgents{profile: models.ProfileBalanced},
		HistoryLimit: 3,
	})

	for i := 0; i < 5; i++ {
		r.Beat()
	}

	if got := heartbeatCount(t, store); got != 3 {
		t.Errorf("retained heartbeats = %d, want 3", got)
	}
}

func TestReporter_Run_StopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	r := NewReporter(Config{
		Store:  store,
		Power:  &fakePower{},
		Agents: &fakeAgents{profile: models.ProfileBalanced},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	waitFor(t, func() bool { return heartbeatCount(t, store) >= 1 })
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestReporter_Run_RearmsOnProfileChange(t *testing.T) {
	store := newTestStore(t)
	agents := &fakeAgents{profile: models.ProfileEco}
	evCh := make(chan events.Event, 1)
	profiles := &config.ProfilesConfig{
		Performance: &config.ProfileConfig{MonitoringInterval: 10 * time.Millisecond},
		Eco:         &config.ProfileConfig{MonitoringInterval: time.Hour},
	}

	r := NewReporter(Config{
		Store:    store,
		Power:    &fakePower{},
		Agents:   agents,
		Profiles: profiles,
		Events:   evCh,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	// One immediate beat, then the hour-long eco cadence.
	waitFor(t, func() bool { return heartbeatCount(t, store) >= 1 })

	agents.setProfile(models.ProfilePerformance)
	evCh <- events.Event{Type: events.EventProfileChanged, Profile: models.ProfilePerformance}

	waitFor(t, func() bool { return heartbeatCount(t, store) >= 3 })

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestReporter_IntervalFallsBack(t *testing.T) {
	r := NewReporter(Config{
		Store:    newTestStore(t),
		Power:    &fakePower{},
		Agents:   &fakeAgents{profile: models.Profile("UNKNOWN")},
		Profiles: &config.ProfilesConfig{},
	})

	if got := r.interval(); got != fallbackInterval {
		t.Errorf("interval() = %v, want %v", got, fallbackInterval)
	}
}
