// Package sched runs the periodic memory maintenance jobs: tier aging,
// database backup, and retention purge.
package sched

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/shayc/otto/internal/config"
	"github.com/shayc/otto/internal/events"
	"github.com/shayc/otto/internal/memory"
)

const (
	backupAttempts  = 3
	backupRetryBase = 10 * time.Second
	backupKeep      = 7
)

// Config holds scheduler wiring.
type Config struct {
	// Store is the memory store the jobs maintain.
	Store *memory.Store
	// Memory supplies the aging windows and the retention period.
	Memory config.MemoryConfig
	// Schedules are the cron expressions for each job.
	Schedules config.SchedConfig
	// BackupDir receives nightly snapshots. Defaults to a backups
	// directory beside the database.
	BackupDir string
	// Emitter receives a maintenance event per job run. Optional.
	Emitter *events.Emitter
}

// Service owns the cron runner behind the maintenance jobs. Stop it
// before closing the memory store.
type Service struct {
	store     *memory.Store
	mem       config.MemoryConfig
	schedules config.SchedConfig
	backupDir string
	emitter   *events.Emitter

	retryDelay time.Duration
	cron       *rcron.Cron
}

// NewService creates the maintenance service.
func NewService(cfg Config) *Service {
	if cfg.Memory.HotWindow <= 0 {
		cfg.Memory.HotWindow = 6 * time.Hour
	}
	if cfg.Memory.WarmWindow <= 0 {
		cfg.Memory.WarmWindow = 24 * time.Hour
	}
	if cfg.Memory.RetentionDays <= 0 {
		cfg.Memory.RetentionDays = 90
	}
	if cfg.Schedules.AgeSchedule == "" {
		cfg.Schedules.AgeSchedule = "@every 10m"
	}
	if cfg.Schedules.BackupSchedule == "" {
		cfg.Schedules.BackupSchedule = "30 3 * * *"
	}
	if cfg.Schedules.PurgeSchedule == "" {
		cfg.Schedules.PurgeSchedule = "0 4 * * *"
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(filepath.Dir(cfg.Store.Path()), "backups")
	}

	return &Service{
		store:      cfg.Store,
		mem:        cfg.Memory,
		schedules:  cfg.Schedules,
		backupDir:  cfg.BackupDir,
		emitter:    cfg.Emitter,
		retryDelay: backupRetryBase,
	}
}

// Start registers the jobs and starts the cron runner.
func (s *Service) Start() error {
	c := rcron.New()
	if _, err := c.AddFunc(s.schedules.AgeSchedule, s.runAge); err != nil {
		return fmt.Errorf("schedule age sweep: %w", err)
	}
	if _, err := c.AddFunc(s.schedules.BackupSchedule, s.runBackup); err != nil {
		return fmt.Errorf("schedule backup: %w", err)
	}
	if _, err := c.AddFunc(s.schedules.PurgeSchedule, s.runPurge); err != nil {
		return fmt.Errorf("schedule purge: %w", err)
	}

	c.Start()
	s.cron = c
	log.Printf("[sched] started (age %q, backup %q, purge %q)",
		s.schedules.AgeSchedule, s.schedules.BackupSchedule, s.schedules.PurgeSchedule)
	return nil
}

// Stop halts scheduling and waits briefly for a running job to finish.
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Printf("[sched] stop timeout waiting for running jobs")
	}
	log.Printf("[sched] stopped")
}

// runAge demotes records down the tiers and enforces the hot budget.
func (s *Service) runAge() {
	stats, err := s.store.Age(memory.AgeConfig{
		HotWindow:  s.mem.HotWindow,
		WarmWindow: s.mem.WarmWindow,
		Retention:  s.retention(),
	})
	if err != nil {
		log.Printf("[sched] WARNING: age sweep failed: %v", err)
		s.emit("age sweep failed", err)
		return
	}

	moved := stats.HotToWarm + stats.WarmToCold + stats.ColdToArchive + stats.BudgetDemotions
	if moved > 0 || stats.Deleted > 0 {
		log.Printf("[sched] age sweep: %d hot->warm, %d warm->cold, %d cold->archive, %d over budget, %d deleted",
			stats.HotToWarm, stats.WarmToCold, stats.ColdToArchive, stats.BudgetDemotions, stats.Deleted)
	}
	s.emit(fmt.Sprintf("age sweep moved %d, deleted %d", moved, stats.Deleted), nil)
}

// runBackup snapshots the database, retrying with backoff. A failed
// backup is logged, never fatal.
func (s *Service) runBackup() {
	var lastErr error
	delay := s.retryDelay

	for attempt := 1; attempt <= backupAttempts; attempt++ {
		path, err := s.store.Backup(s.backupDir)
		if err == nil {
			log.Printf("[sched] backup written to %s", path)
			if removed, err := memory.PruneBackups(s.backupDir, backupKeep); err != nil {
				log.Printf("[sched] WARNING: backup prune failed: %v", err)
			} else if removed > 0 {
				log.Printf("[sched] pruned %d old backups", removed)
			}
			s.emit("backup written to "+path, nil)
			return
		}

		lastErr = err
		log.Printf("[sched] WARNING: backup attempt %d/%d failed: %v", attempt, backupAttempts, err)
		if attempt < backupAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}

	s.emit("backup failed", lastErr)
}

// runPurge deletes records past the retention window.
func (s *Service) runPurge() {
	removed, err := s.store.Purge(s.retention())
	if err != nil {
		log.Printf("[sched] WARNING: retention purge failed: %v", err)
		s.emit("retention purge failed", err)
		return
	}

	if removed > 0 {
		log.Printf("[sched] retention purge removed %d records", removed)
	}
	s.emit(fmt.Sprintf("retention purge removed %d records", removed), nil)
}

func (s *Service) retention() time.Duration {
	return time.Duration(s.mem.RetentionDays) * 24 * time.Hour
}

func (s *Service) emit(message string, err error) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(events.Event{
		Type:    events.EventMaintenance,
		Message: message,
		Error:   err,
	})
}
