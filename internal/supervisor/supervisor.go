// Package supervisor owns the agent lifecycle: one live instance per
// kind, profile-driven rosters, and drain-before-stop semantics.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shayc/otto/internal/events"
	"github.com/shayc/otto/pkg/models"
)

var (
	// ErrAlreadyRunning means a live instance exists for the kind.
	ErrAlreadyRunning = errors.New("agent already running")
	// ErrNotRunning means no live instance exists for the kind.
	ErrNotRunning = errors.New("agent not running")
	// ErrBelowMinimumProfile means the active profile's roster excludes
	// the kind.
	ErrBelowMinimumProfile = errors.New("agent not permitted below its minimum profile")
	// ErrNotRegistered means no factory exists for the kind.
	ErrNotRegistered = errors.New("agent kind not registered")
)

const defaultDrainTimeout = 10 * time.Second

// Agent is one supervised worker. Run is the work loop and returns when
// its context is canceled; Drain flushes pending writes afterwards.
type Agent interface {
	Kind() models.AgentKind
	Run(ctx context.Context)
	Drain(ctx context.Context) error
	// Progress reports the last work-loop beat and completed task count.
	Progress() (time.Time, int64)
}

// Factory constructs an agent instance. Called on first start of the
// kind, never at registration.
type Factory func() (Agent, error)

// Config assembles a Supervisor.
type Config struct {
	// DrainTimeout bounds loop exit plus drain per stopping agent.
	DrainTimeout time.Duration
	// Emitter receives start/stop events. May be nil.
	Emitter *events.Emitter
	// Backup saves a memory snapshot before critical stops. May be nil.
	Backup func() (string, error)
}

// instance is one live agent under supervision.
type instance struct {
	id        string
	agent     Agent
	state     models.AgentState
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// Supervisor enforces the singleton-per-kind invariant and reconciles
// the running set against the active profile's roster.
type Supervisor struct {
	drainTimeout time.Duration
	emitter      *events.Emitter
	backup       func() (string, error)

	mu        sync.RWMutex
	active    models.Profile
	factories map[models.AgentKind]Factory
	instances map[models.AgentKind]*instance
}

// New creates a supervisor. The active profile starts at CRITICAL until
// the first reconcile, matching the monitor's pre-sample default.
func New(cfg Config) *Supervisor {
	drainTimeout := cfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = defaultDrainTimeout
	}
	return &Supervisor{
		drainTimeout: drainTimeout,
		emitter:      cfg.Emitter,
		backup:       cfg.Backup,
		active:       models.ProfileCritical,
		factories:    make(map[models.AgentKind]Factory),
		instances:    make(map[models.AgentKind]*instance),
	}
}

// Register binds a factory to a kind. Registering a kind twice is a
// wiring bug and fails.
func (s *Supervisor) Register(kind models.AgentKind, factory Factory) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown agent kind: %s", kind)
	}
	if factory == nil {
		return fmt.Errorf("nil factory for %s", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.factories[kind]; dup {
		return fmt.Errorf("agent %s already registered", kind)
	}
	s.factories[kind] = factory
	return nil
}

// Start brings one kind to RUNNING. Fails with ErrAlreadyRunning when a
// live instance exists and ErrBelowMinimumProfile when the active
// profile's roster excludes the kind.
func (s *Supervisor) Start(ctx context.Context, kind models.AgentKind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown agent kind: %s", kind)
	}

	s.mu.Lock()
	if inst, ok := s.instances[kind]; ok && inst.state != models.AgentStopped {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	if !kind.EligibleUnder(s.active) {
		s.mu.Unlock()
		return ErrBelowMinimumProfile
	}
	factory, ok := s.factories[kind]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRegistered, kind)
	}

	// Claim the slot as STARTING before constructing so a concurrent
	// Start for the same kind fails instead of double-instantiating.
	inst := &instance{
		id:    uuid.New().String()[:8],
		state: models.AgentStarting,
	}
	s.instances[kind] = inst
	s.mu.Unlock()

	agent, err := factory()
	if err != nil {
		s.mu.Lock()
		delete(s.instances, kind)
		s.mu.Unlock()
		return fmt.Errorf("construct %s agent: %w", kind, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	inst.agent = agent
	inst.cancel = cancel
	inst.done = done
	inst.startedAt = time.Now().UTC()
	inst.state = models.AgentRunning
	s.mu.Unlock()

	go func() {
		defer close(done)
		agent.Run(runCtx)
	}()

	log.Printf("[supervisor] started %s agent (id=%s)", kind, inst.id)
	s.emit(events.Event{Type: events.EventAgentStarted, Agent: kind})
	return nil
}

// Stop drains and releases one kind. The drain timeout bounds work-loop
// exit plus the flush; an incomplete drain is surfaced, not swallowed.
func (s *Supervisor) Stop(ctx context.Context, kind models.AgentKind) error {
	s.mu.Lock()
	inst, ok := s.instances[kind]
	if !ok || inst.state != models.AgentRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	inst.state = models.AgentStopping
	s.mu.Unlock()

	graceCtx, cancel := context.WithTimeout(ctx, s.drainTimeout)
	defer cancel()

	inst.cancel()
	select {
	case <-inst.done:
	case <-graceCtx.Done():
		log.Printf("[supervisor] WARNING: %s work loop did not exit within grace period", kind)
	}

	drainErr := inst.agent.Drain(graceCtx)

	s.mu.Lock()
	delete(s.instances, kind)
	s.mu.Unlock()

	s.emit(events.Event{Type: events.EventAgentStopped, Agent: kind})

	if drainErr != nil {
		log.Printf("[supervisor] WARNING: %s drain incomplete: %v", kind, drainErr)
		return fmt.Errorf("drain %s: %w", kind, drainErr)
	}
	log.Printf("[supervisor] stopped %s agent", kind)
	return nil
}

// Reconcile drives the running set to the profile's roster: extra
// agents stop first (each drained), missing ones start after.
// Re-applying the same profile is a no-op. Entering CRITICAL saves a
// memory snapshot before the stops.
func (s *Supervisor) Reconcile(ctx context.Context, profile models.Profile) error {
	if !profile.Valid() {
		return fmt.Errorf("unknown profile: %s", profile)
	}

	s.mu.Lock()
	s.active = profile
	s.mu.Unlock()

	roster := make(map[models.AgentKind]bool)
	for _, k := range models.RosterFor(profile) {
		roster[k] = true
	}

	var toStop []models.AgentKind
	for _, k := range s.Running() {
		if !roster[k] {
			toStop = append(toStop, k)
		}
	}

	if profile == models.ProfileCritical && len(toStop) > 0 && s.backup != nil {
		if path, err := s.backup(); err != nil {
			log.Printf("[supervisor] WARNING: backup before critical stop failed: %v", err)
		} else {
			log.Printf("[supervisor] saved memory snapshot %s before critical stop", path)
		}
	}

	var firstErr error
	for _, k := range toStop {
		if err := s.Stop(ctx, k); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, k := range models.RosterFor(profile) {
		err := s.Start(ctx, k)
		if err == nil || errors.Is(err, ErrAlreadyRunning) {
			continue
		}
		if errors.Is(err, ErrNotRegistered) {
			// The daemon may run with a partial roster wired, e.g.
			// when a backend for a kind is unconfigured.
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// StopAll stops every running agent, draining each. Used at shutdown.
func (s *Supervisor) StopAll(ctx context.Context) error {
	var firstErr error
	for _, k := range s.Running() {
		if err := s.Stop(ctx, k); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Running lists the kinds with a RUNNING instance, in roster order.
func (s *Supervisor) Running() []models.AgentKind {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var kinds []models.AgentKind
	for _, k := range models.AllAgentKinds() {
		if inst, ok := s.instances[k]; ok && inst.state == models.AgentRunning {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// IsRunning reports whether the kind has a RUNNING instance.
func (s *Supervisor) IsRunning(kind models.AgentKind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[kind]
	return ok && inst.state == models.AgentRunning
}

// ActiveProfile returns the last reconciled profile.
func (s *Supervisor) ActiveProfile() models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Handles snapshots every live instance for status and heartbeats, in
// roster order.
func (s *Supervisor) Handles() []models.AgentHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var handles []models.AgentHandle
	for _, k := range models.AllAgentKinds() {
		inst, ok := s.instances[k]
		if !ok {
			continue
		}
		h := models.AgentHandle{
			ID:        inst.id,
			Kind:      k,
			State:     inst.state,
			StartedAt: inst.startedAt,
		}
		if inst.agent != nil {
			h.LastHeartbeat, h.TasksCompleted = inst.agent.Progress()
		}
		handles = append(handles, h)
	}
	return handles
}

func (s *Supervisor) emit(ev events.Event) {
	if s.emitter != nil {
		s.emitter.Emit(ev)
	}
}
