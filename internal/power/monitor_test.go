package power

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shayc/otto/internal/events"
	"github.com/shayc/otto/pkg/models"
)

type fakeReading struct {
	sample models.PowerSample
	err    error
}

// fakeSensor replays a scripted sequence of readings, holding the last
// one once the script runs out.
type fakeSensor struct {
	mu       sync.Mutex
	readings []fakeReading
	idx      int
}

func (f *fakeSensor) Sample() (models.PowerSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.readings[f.idx]
	if f.idx < len(f.readings)-1 {
		f.idx++
	}
	return r.sample, r.err
}

func onBattery(pct int) fakeReading {
	return fakeReading{sample: models.PowerSample{BatteryPercent: pct, SampledAt: time.Now()}}
}

func onAC(pct int) fakeReading {
	return fakeReading{sample: models.PowerSample{BatteryPercent: pct, OnAC: true, SampledAt: time.Now()}}
}

func sensorError() fakeReading {
	return fakeReading{err: ErrSensorUnavailable}
}

func newTestMonitor(readings ...fakeReading) *Monitor {
	return NewMonitor(&fakeSensor{readings: readings}, Config{UpgradeSamples: 2})
}

func TestMonitor_DefaultsToCriticalBeforeSampling(t *testing.T) {
	m := newTestMonitor(onAC(100))

	if got := m.CurrentProfile(); got != models.ProfileCritical {
		t.Errorf("CurrentProfile = %s, want %s", got, models.ProfileCritical)
	}
}

func TestMonitor_FirstSampleEstablishesProfile(t *testing.T) {
	m := newTestMonitor(onAC(100))
	m.Prime()

	if got := m.CurrentProfile(); got != models.ProfilePerformance {
		t.Errorf("CurrentProfile = %s, want %s", got, models.ProfilePerformance)
	}
}

func TestMonitor_DowngradeAppliesImmediately(t *testing.T) {
	m := newTestMonitor(onBattery(60), onBattery(30))
	m.Prime()

	if got := m.CurrentProfile(); got != models.ProfileBalanced {
		t.Fatalf("CurrentProfile = %s, want %s", got, models.ProfileBalanced)
	}

	m.sampleOnce()
	if got := m.CurrentProfile(); got != models.ProfileEco {
		t.Errorf("CurrentProfile = %s, want %s after one low sample", got, models.ProfileEco)
	}
}

func TestMonitor_UpgradeNeedsConsecutiveSamples(t *testing.T) {
	m := newTestMonitor(onBattery(30), onBattery(60), onBattery(60))
	m.Prime()

	if got := m.CurrentProfile(); got != models.ProfileEco {
		t.Fatalf("CurrentProfile = %s, want %s", got, models.ProfileEco)
	}

	m.sampleOnce()
	if got := m.CurrentProfile(); got != models.ProfileEco {
		t.Errorf("CurrentProfile = %s after one qualifying sample, want %s", got, models.ProfileEco)
	}

	m.sampleOnce()
	if got := m.CurrentProfile(); got != models.ProfileBalanced {
		t.Errorf("CurrentProfile = %s after two qualifying samples, want %s", got, models.ProfileBalanced)
	}
}

func TestMonitor_UpgradeResetOnInterruption(t *testing.T) {
	m := newTestMonitor(onBattery(30), onBattery(60), onBattery(30), onBattery(60), onBattery(60))
	m.Prime()

	for i := 0; i < 3; i++ {
		m.sampleOnce()
	}
	// 60, 30, 60: the interruption reset the consecutive count
	if got := m.CurrentProfile(); got != models.ProfileEco {
		t.Errorf("CurrentProfile = %s, want %s", got, models.ProfileEco)
	}

	m.sampleOnce()
	if got := m.CurrentProfile(); got != models.ProfileBalanced {
		t.Errorf("CurrentProfile = %s, want %s", got, models.ProfileBalanced)
	}
}

func TestMonitor_UnplugAtHighCharge(t *testing.T) {
	// Stable on AC, then unplugged at 85%: the discharging host drops
	// to BALANCED on the first sample since it is more constrained.
	var changes []models.Profile
	sensor := &fakeSensor{readings: []fakeReading{onAC(90), onAC(88), onBattery(85)}}
	m := NewMonitor(sensor, Config{
		UpgradeSamples: 2,
		OnChange: func(prev, next models.Profile) {
			changes = append(changes, next)
		},
	})

	m.Prime()
	m.sampleOnce()
	if got := m.CurrentProfile(); got != models.ProfilePerformance {
		t.Fatalf("CurrentProfile = %s, want %s", got, models.ProfilePerformance)
	}

	m.sampleOnce()
	if got := m.CurrentProfile(); got != models.ProfileBalanced {
		t.Errorf("CurrentProfile = %s, want %s after unplugging", got, models.ProfileBalanced)
	}
	if len(changes) != 2 {
		t.Errorf("got %d change callbacks, want 2", len(changes))
	}
	if changes[len(changes)-1] != models.ProfileBalanced {
		t.Errorf("last change = %s, want %s", changes[len(changes)-1], models.ProfileBalanced)
	}
}

func TestMonitor_SensorFailureHoldsCritical(t *testing.T) {
	m := newTestMonitor(onAC(100), sensorError(), sensorError())
	m.Prime()

	m.sampleOnce()
	if got := m.CurrentProfile(); got != models.ProfileCritical {
		t.Errorf("CurrentProfile = %s, want %s after sensor failure", got, models.ProfileCritical)
	}
	if m.SensorHealthy() {
		t.Error("SensorHealthy = true, want false")
	}

	// Repeated failures stay put
	m.sampleOnce()
	if got := m.CurrentProfile(); got != models.ProfileCritical {
		t.Errorf("CurrentProfile = %s, want %s", got, models.ProfileCritical)
	}
}

func TestMonitor_RecoveryGoesThroughHysteresis(t *testing.T) {
	m := newTestMonitor(onAC(100), sensorError(), onAC(100), onAC(100))
	m.Prime()
	m.sampleOnce()

	m.sampleOnce()
	if got := m.CurrentProfile(); got != models.ProfileCritical {
		t.Errorf("CurrentProfile = %s one sample after recovery, want %s", got, models.ProfileCritical)
	}
	if !m.SensorHealthy() {
		t.Error("SensorHealthy = false, want true")
	}

	m.sampleOnce()
	if got := m.CurrentProfile(); got != models.ProfilePerformance {
		t.Errorf("CurrentProfile = %s two samples after recovery, want %s", got, models.ProfilePerformance)
	}
}

func TestMonitor_EmitsChangeEventsOnlyOnDifference(t *testing.T) {
	emitter := events.NewEmitter(16)
	sensor := &fakeSensor{readings: []fakeReading{onBattery(60), onBattery(60), onBattery(60)}}
	m := NewMonitor(sensor, Config{UpgradeSamples: 2, Emitter: emitter})

	m.Prime()
	m.sampleOnce()
	m.sampleOnce()
	emitter.Close()

	var changed int
	for e := range emitter.Events() {
		if e.Type == events.EventProfileChanged {
			changed++
		}
	}
	if changed != 1 {
		t.Errorf("profile_changed events = %d, want 1", changed)
	}
}

func TestMonitor_EmitsFailureAndRecoveryEvents(t *testing.T) {
	emitter := events.NewEmitter(16)
	sensor := &fakeSensor{readings: []fakeReading{onAC(90), sensorError(), onAC(90)}}
	m := NewMonitor(sensor, Config{UpgradeSamples: 2, Emitter: emitter})

	m.Prime()
	m.sampleOnce()
	m.sampleOnce()
	emitter.Close()

	var sawFailed, sawRecovered bool
	for e := range emitter.Events() {
		switch e.Type {
		case events.EventSampleFailed:
			sawFailed = true
		case events.EventSensorRecovered:
			sawRecovered = true
		}
	}
	if !sawFailed {
		t.Error("missing sample_failed event")
	}
	if !sawRecovered {
		t.Error("missing sensor_recovered event")
	}
}

func TestMonitor_RecentSamples(t *testing.T) {
	m := newTestMonitor(onBattery(60), onBattery(58), onBattery(56))
	m.Prime()
	m.sampleOnce()
	m.sampleOnce()

	samples := m.RecentSamples()
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}
	if samples[0].BatteryPercent != 60 || samples[2].BatteryPercent != 56 {
		t.Errorf("samples out of order: first=%d last=%d", samples[0].BatteryPercent, samples[2].BatteryPercent)
	}
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	m := NewMonitor(&fakeSensor{readings: []fakeReading{onAC(100)}}, Config{
		Interval:       5 * time.Millisecond,
		UpgradeSamples: 2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}

	if got := m.CurrentProfile(); got != models.ProfilePerformance {
		t.Errorf("CurrentProfile = %s, want %s", got, models.ProfilePerformance)
	}
}
