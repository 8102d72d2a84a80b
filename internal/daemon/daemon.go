// Package daemon wires the otto components together and runs them until
// shutdown: power monitoring, agent supervision, routing, heartbeats,
// maintenance, and the external signal surface.
package daemon

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shayc/otto/internal/agents"
	"github.com/shayc/otto/internal/backend"
	"github.com/shayc/otto/internal/config"
	"github.com/shayc/otto/internal/events"
	"github.com/shayc/otto/internal/heartbeat"
	"github.com/shayc/otto/internal/learning"
	"github.com/shayc/otto/internal/logging"
	"github.com/shayc/otto/internal/memory"
	"github.com/shayc/otto/internal/power"
	"github.com/shayc/otto/internal/router"
	"github.com/shayc/otto/internal/sched"
	"github.com/shayc/otto/internal/signals"
	"github.com/shayc/otto/internal/supervisor"
	"github.com/shayc/otto/internal/version"
	"github.com/shayc/otto/pkg/models"
)

const (
	defaultDataDir = ".otto"
	signalPoll     = time.Second
	eventBuffer    = 64
)

// Options configure a daemon run.
type Options struct {
	// ConfigPath overrides config discovery when set.
	ConfigPath string
	// DataDir is the project data directory. Defaults to .otto.
	DataDir string
	// Profile pins the active profile for the whole run. Optional.
	Profile string
}

// Daemon holds the wired components for one run.
type Daemon struct {
	cfg     *config.Config
	dataDir string
	forced  models.Profile

	store      *memory.Store
	learnings  *learning.Store
	emitter    *events.Emitter
	fanout     *events.Fanout
	monitor    *power.Monitor
	sup        *supervisor.Supervisor
	router     *router.Router
	reporter   *heartbeat.Reporter
	maint      *sched.Service
	signalsMgr *signals.Manager
	monAgent   *agents.Monitor
	debugLog   *logging.DebugLogger

	// applied is the last profile the supervisor was reconciled to.
	// Touched only from the Run goroutine.
	applied models.Profile
}

// profilePolicy adapts the daemon's effective profile to the router's
// policy view, so a profile change steers the very next think call.
type profilePolicy struct {
	active   func() models.Profile
	profiles *config.ProfilesConfig
}

func (pp profilePolicy) ActivePolicy() models.ReasoningPolicy {
	pc := pp.profiles.Get(pp.active())
	if pc == nil {
		return models.PolicyCacheOnly
	}
	return pc.ReasoningPolicy()
}

func (pp profilePolicy) CacheTTL() time.Duration {
	pc := pp.profiles.Get(pp.active())
	if pc == nil || pc.CacheTTL <= 0 {
		return 24 * time.Hour
	}
	return pc.CacheTTL
}

// New loads configuration and wires every component. Nothing is running
// yet; Run starts the loops.
func New(opts Options) (*Daemon, error) {
	var cfg *config.Config
	var err error
	if opts.ConfigPath != "" {
		cfg, err = config.LoadFromPath(opts.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var forced models.Profile
	if opts.Profile != "" {
		forced = models.Profile(strings.ToUpper(opts.Profile))
		if !forced.Valid() {
			return nil, fmt.Errorf("unknown profile %q", opts.Profile)
		}
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = defaultDataDir
	}

	db, err := memory.Open(filepath.Join(dataDir, "otto.db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	var budget int64
	if pc := cfg.Profiles.Get(models.ProfileCritical); pc != nil {
		budget = pc.BudgetBytes()
	}
	store := memory.NewStore(db, budget)

	d := &Daemon{
		cfg:       cfg,
		dataDir:   dataDir,
		forced:    forced,
		store:     store,
		learnings: learning.NewStore(db),
		emitter:   events.NewEmitter(eventBuffer),
		fanout:    events.NewFanout(),
		applied:   models.ProfileCritical,
	}

	ok := false
	defer func() {
		if !ok {
			store.Close()
		}
	}()

	// Backends. A missing key or unreachable endpoint narrows the
	// routing chain instead of blocking startup.
	var remoteB, localB backend.Backend
	var usage heartbeat.Usage
	remote, err := backend.NewRemote(backend.RemoteConfig{
		Model:      cfg.Backends.Remote.Model,
		MaxTokens:  cfg.Backends.Remote.MaxTokens,
		APIKey:     cfg.Anthropic.APIKey,
		UseBedrock: cfg.Backends.Remote.UseBedrock,
		AWSRegion:  cfg.Backends.Remote.AWSRegion,
		AWSProfile: cfg.Backends.Remote.AWSProfile,
	})
	if err != nil {
		log.Printf("[daemon] WARNING: remote backend unavailable: %v", err)
	} else {
		remoteB = remote
		usage = remote.Tracker()
	}
	local, err := backend.NewLocal(backend.LocalConfig{
		URL:     cfg.Backends.Local.URL,
		Model:   cfg.Backends.Local.Model,
		Timeout: cfg.Backends.Local.Timeout,
	})
	if err != nil {
		log.Printf("[daemon] WARNING: local backend unavailable: %v", err)
	} else {
		localB = local
	}

	rtr, err := router.NewRouter(router.Config{
		Store:          store,
		Policy:         profilePolicy{active: d.activeProfile, profiles: &cfg.Profiles},
		Remote:         remoteB,
		Local:          localB,
		MaxAttempts:    cfg.Router.MaxAttempts,
		BackoffBase:    cfg.Router.BackoffBase,
		BackoffCap:     cfg.Router.BackoffCap,
		ThinkTimeout:   cfg.Router.ThinkTimeout,
		ContextRecords: cfg.Router.ContextRecords,
		Emitter:        d.emitter,
	})
	if err != nil {
		return nil, fmt.Errorf("wire router: %w", err)
	}
	d.router = rtr

	d.sup = supervisor.New(supervisor.Config{
		DrainTimeout: cfg.Supervisor.DrainTimeout,
		Emitter:      d.emitter,
		Backup: func() (string, error) {
			return store.Backup(filepath.Join(dataDir, "backups"))
		},
	})

	// The monitor agent outlives start/stop cycles so its sample count
	// survives into heartbeats.
	d.monAgent = agents.NewMonitor(store, &cfg.Profiles, d.sup, cfg.Agents.Monitor.Interval)
	factories := map[models.AgentKind]supervisor.Factory{
		models.AgentMonitor: func() (supervisor.Agent, error) { return d.monAgent, nil },
		models.AgentIndexer: func() (supervisor.Agent, error) {
			return agents.NewIndexer(store, cfg.Agents.Indexer), nil
		},
		models.AgentLearner: func() (supervisor.Agent, error) {
			return agents.NewLearner(store, d.learnings, cfg.Agents.Learner), nil
		},
		models.AgentCoder: func() (supervisor.Agent, error) {
			return agents.NewCoder(store, rtr, cfg.Agents.Coder), nil
		},
		models.AgentReviewer: func() (supervisor.Agent, error) {
			return agents.NewReviewer(store, rtr), nil
		},
	}
	for kind, factory := range factories {
		if err := d.sup.Register(kind, factory); err != nil {
			return nil, fmt.Errorf("register %s: %w", kind, err)
		}
	}

	d.monitor = power.NewMonitor(power.NewSysfsSensor(cfg.Power.SysfsPath), power.Config{
		Interval:       cfg.Power.SampleInterval,
		UpgradeSamples: cfg.Power.UpgradeSamples,
		Thresholds: power.Thresholds{
			PerformanceAbove: cfg.Power.PerformanceAbove,
			BalancedAbove:    cfg.Power.BalancedAbove,
			EcoAbove:         cfg.Power.EcoAbove,
		},
		PerformanceOnBattery: cfg.Power.PerformanceOnBattery,
		Emitter:              d.emitter,
	})

	d.reporter = heartbeat.NewReporter(heartbeat.Config{
		Store:        store,
		Power:        d.monitor,
		Agents:       d.sup,
		Metrics:      d.monAgent,
		Tokens:       usage,
		Profiles:     &cfg.Profiles,
		DrainWindow:  cfg.Heartbeat.DrainWindow,
		HistoryLimit: cfg.Heartbeat.HistoryLimit,
		Emitter:      d.emitter,
		Events:       d.fanout.Subscribe(16),
		StartedAt:    time.Now(),
	})

	d.maint = sched.NewService(sched.Config{
		Store:     store,
		Memory:    cfg.Memory,
		Schedules: cfg.Sched,
		BackupDir: filepath.Join(dataDir, "backups"),
		Emitter:   d.emitter,
	})

	d.signalsMgr, err = signals.NewManager(dataDir, store)
	if err != nil {
		return nil, fmt.Errorf("wire signals: %w", err)
	}

	ok = true
	return d, nil
}

// Router exposes the wired router for in-process callers.
func (d *Daemon) Router() *router.Router {
	return d.router
}

// activeProfile is the effective profile: a CLI-pinned profile wins,
// then the signal-file override, then the power monitor.
func (d *Daemon) activeProfile() models.Profile {
	if d.forced != "" {
		return d.forced
	}
	if p, ok := d.signalsMgr.ProfileOverride(); ok {
		return p
	}
	return d.monitor.CurrentProfile()
}

// Run starts every loop and blocks until the context is cancelled or a
// stop signal arrives. The returned error is non-nil when shutdown
// could not drain the agents inside the grace window.
func (d *Daemon) Run(ctx context.Context) error {
	d.debugLog = logging.NewDebugLoggerForDir(d.dataDir)
	logging.SetDefault(d.debugLog)

	log.Printf("[daemon] otto %s starting (db %s)", version.Get(), d.store.Path())
	d.signalsMgr.Clear()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	start := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(runCtx)
		}()
	}

	sub := d.fanout.Subscribe(16)
	start(func(c context.Context) { d.fanout.Run(c, d.emitter.Events()) })

	// The first sample decides the opening roster; a dead sensor leaves
	// the CRITICAL default in place.
	d.monitor.Prime()
	d.forceReconcile(runCtx)
	log.Printf("[daemon] starting under %s", d.applied)

	start(d.monitor.Run)
	start(d.signalsMgr.Run)

	hbCtx, hbCancel := context.WithCancel(runCtx)
	defer func() { hbCancel() }()
	var hbWg sync.WaitGroup
	startHeartbeat := func(c context.Context) {
		hbWg.Add(1)
		go func() {
			defer hbWg.Done()
			d.reporter.Run(c)
		}()
	}
	startHeartbeat(hbCtx)

	if err := d.maint.Start(); err != nil {
		cancel()
		hbWg.Wait()
		wg.Wait()
		d.closeAll()
		return fmt.Errorf("start maintenance: %w", err)
	}

	ticker := time.NewTicker(signalPoll)
	defer ticker.Stop()

	paused := false
	for {
		select {
		case <-ctx.Done():
			return d.shutdown("shutdown requested", cancel, &wg, &hbWg)

		case ev, ok := <-sub:
			if !ok {
				sub = nil
				continue
			}
			if ev.Type == events.EventProfileChanged && !paused {
				d.applyProfile(runCtx)
			}

		case <-ticker.C:
			if d.signalsMgr.ShouldStop() {
				return d.shutdown("stop signal", cancel, &wg, &hbWg)
			}

			pausing := d.signalsMgr.ShouldPause()
			switch {
			case pausing && !paused:
				paused = true
				log.Printf("[daemon] paused by signal")
				hbCancel()
				hbWg.Wait()
				if err := d.sup.StopAll(runCtx); err != nil {
					log.Printf("[daemon] WARNING: pause stop incomplete: %v", err)
				}
			case !pausing && paused:
				paused = false
				log.Printf("[daemon] resumed")
				hbCtx, hbCancel = context.WithCancel(runCtx)
				startHeartbeat(hbCtx)
				d.forceReconcile(runCtx)
			}

			if !paused {
				d.applyProfile(runCtx)
			}
		}
	}
}

// applyProfile reconciles the supervisor and the hot budget when the
// effective profile moved.
func (d *Daemon) applyProfile(ctx context.Context) {
	next := d.activeProfile()
	if next == d.applied {
		return
	}
	prev := d.applied

	if err := d.sup.Reconcile(ctx, next); err != nil {
		log.Printf("[daemon] WARNING: reconcile to %s failed: %v", next, err)
		return
	}
	if pc := d.cfg.Profiles.Get(next); pc != nil {
		d.store.SetBudget(pc.BudgetBytes())
	}
	d.applied = next

	logging.Debugf("profile applied %s -> %s", prev, next)
	d.emitter.Emit(events.Event{
		Type:            events.EventProfileChanged,
		Profile:         next,
		PreviousProfile: prev,
	})
}

// forceReconcile applies the current profile unconditionally. Used at
// startup and after a resume, when the roster does not match the
// profile the loop thinks is applied.
func (d *Daemon) forceReconcile(ctx context.Context) {
	next := d.activeProfile()
	if err := d.sup.Reconcile(ctx, next); err != nil {
		log.Printf("[daemon] WARNING: reconcile to %s failed: %v", next, err)
	}
	if pc := d.cfg.Profiles.Get(next); pc != nil {
		d.store.SetBudget(pc.BudgetBytes())
	}
	d.applied = next
}

func (d *Daemon) shutdown(reason string, cancel context.CancelFunc, wg, hbWg *sync.WaitGroup) error {
	log.Printf("[daemon] shutting down: %s", reason)

	cancel()
	hbWg.Wait()
	d.maint.Stop()

	// Agents drain under their own grace window, independent of the
	// already-cancelled run context.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	drainErr := d.sup.StopAll(stopCtx)

	// Final snapshot records the stopped state.
	d.reporter.Beat()

	wg.Wait()
	d.closeAll()

	if drainErr != nil {
		log.Printf("[daemon] drain exceeded grace, writes may be lost: %v", drainErr)
		return fmt.Errorf("drain incomplete: %w", drainErr)
	}
	log.Printf("[daemon] stopped cleanly")
	return nil
}

func (d *Daemon) closeAll() {
	d.signalsMgr.Close()
	if err := d.store.Close(); err != nil {
		log.Printf("[daemon] WARNING: close store: %v", err)
	}
	d.emitter.Close()
	logging.SetDefault(nil)
	d.debugLog.Close()
}
