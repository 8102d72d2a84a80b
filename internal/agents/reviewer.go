package agents

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shayc/otto/internal/memory"
	"github.com/shayc/otto/pkg/models"
)

const (
	defaultReviewInterval = 5 * time.Minute
	// reviewBatchLimit bounds how many coder results one pass reviews.
	reviewBatchLimit = 3
	reviewSnippetLen = 120
)

// Reviewer reads recent coder results and routes a review prompt for
// each, recording the critique as a TASK record. Reviews are
// best-effort: a failed review is logged and not retried.
type Reviewer struct {
	base
	records  *taskLog
	store    Memory
	thinker  Thinker
	interval time.Duration

	// lastScan is only touched from the run goroutine.
	lastScan time.Time
}

// NewReviewer creates the reviewer agent. Coder results older than the
// agent's construction are out of scope.
func NewReviewer(store Memory, thinker Thinker) *Reviewer {
	return &Reviewer{
		base:     base{kind: models.AgentReviewer},
		records:  newTaskLog(store, models.AgentReviewer),
		store:    store,
		thinker:  thinker,
		interval: defaultReviewInterval,
		lastScan: time.Now().UTC(),
	}
}

// Run reviews once immediately, then on every tick until the context
// is canceled.
func (rv *Reviewer) Run(ctx context.Context) {
	rv.pass(ctx)

	ticker := time.NewTicker(rv.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rv.pass(ctx)
		}
	}
}

// Drain flushes any buffered review records.
func (rv *Reviewer) Drain(ctx context.Context) error {
	return rv.records.flush(ctx)
}

func (rv *Reviewer) pass(ctx context.Context) {
	rv.beat()
	scanStart := time.Now().UTC()

	results, err := rv.store.Query(memory.QueryFilter{
		Kind:      models.KindTask,
		AgentKind: models.AgentCoder,
		Since:     rv.lastScan,
		Limit:     reviewBatchLimit,
	})
	if err != nil {
		log.Printf("[reviewer] WARNING: coder result scan failed: %v", err)
		return
	}

	// Oldest first; the query returns newest first.
	for i := len(results) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return
		}
		task := results[i]
		if task.Response == "" {
			continue
		}

		prompt := fmt.Sprintf("Review this completed task for correctness and clarity.\n\nTask:\n%s\n\nResult:\n%s",
			task.Payload, task.Response)
		result, err := rv.thinker.Think(ctx, models.ThinkRequest{
			Prompt: prompt,
			Agent:  models.AgentReviewer,
		})
		if err != nil {
			log.Printf("[reviewer] WARNING: review failed for task %s: %v", task.ID, err)
			continue
		}

		rv.records.add("review: "+snippet(task.Payload, reviewSnippetLen), result.Answer)
		rv.taskDone()
	}
	rv.lastScan = scanStart

	if err := rv.records.flush(ctx); err != nil {
		log.Printf("[reviewer] WARNING: task flush failed: %v", err)
	}
}

// snippet shortens s for a record payload.
func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
