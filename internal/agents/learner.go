package agents

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shayc/otto/internal/config"
	"github.com/shayc/otto/internal/learning"
	"github.com/shayc/otto/internal/memory"
	"github.com/shayc/otto/pkg/models"
)

const (
	defaultLearnInterval  = 10 * time.Minute
	defaultLearnScanLimit = 50
)

// Learner scans consultations appended since its last pass, distills
// them into patterns, and records a scan summary.
type Learner struct {
	base
	records   *taskLog
	store     Memory
	learnings *learning.Store
	interval  time.Duration
	scanLimit int

	// lastScan is only touched from the run goroutine.
	lastScan time.Time
}

// NewLearner creates the learner agent. Consultations older than the
// agent's construction are out of scope.
func NewLearner(store Memory, learnings *learning.Store, cfg config.LearnerAgentConfig) *Learner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultLearnInterval
	}
	scanLimit := cfg.ScanLimit
	if scanLimit <= 0 {
		scanLimit = defaultLearnScanLimit
	}
	return &Learner{
		base:      base{kind: models.AgentLearner},
		records:   newTaskLog(store, models.AgentLearner),
		store:     store,
		learnings: learnings,
		interval:  interval,
		scanLimit: scanLimit,
		lastScan:  time.Now().UTC(),
	}
}

// Run scans once immediately, then on every tick until the context is
// canceled.
func (ln *Learner) Run(ctx context.Context) {
	ln.pass(ctx)

	ticker := time.NewTicker(ln.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ln.pass(ctx)
		}
	}
}

// Drain flushes any buffered scan summaries.
func (ln *Learner) Drain(ctx context.Context) error {
	return ln.records.flush(ctx)
}

func (ln *Learner) pass(ctx context.Context) {
	ln.beat()
	scanStart := time.Now().UTC()

	recs, err := ln.store.Query(memory.QueryFilter{
		Kind:  models.KindConsultation,
		Since: ln.lastScan,
		Limit: ln.scanLimit,
	})
	if err != nil {
		// The watermark stays put so the window is retried next pass.
		log.Printf("[learner] WARNING: consultation scan failed: %v", err)
		return
	}

	observed := 0
	for _, rec := range recs {
		for _, pattern := range learning.ExtractPatterns(rec.Payload) {
			if err := ln.learnings.Observe(pattern, rec.ID, rec.CreatedAt); err != nil {
				log.Printf("[learner] WARNING: observe %q failed: %v", pattern, err)
				continue
			}
			observed++
		}
	}
	ln.lastScan = scanStart

	if len(recs) > 0 {
		ln.records.add(fmt.Sprintf("learned %d patterns from %d consultations", observed, len(recs)), "")
		ln.taskDone()
	}

	if err := ln.records.flush(ctx); err != nil {
		log.Printf("[learner] WARNING: task flush failed: %v", err)
	}
}
