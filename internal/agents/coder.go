package agents

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shayc/otto/internal/config"
	"github.com/shayc/otto/internal/learning"
	"github.com/shayc/otto/internal/memory"
	"github.com/shayc/otto/pkg/models"
)

const (
	defaultCoderInterval = time.Minute
	defaultCoderWindow   = 7 * 24 * time.Hour
	// coderBatchLimit bounds how many queued prompts one pass may route.
	coderBatchLimit = 5
	coderDoneLimit  = 100
)

// Coder consumes queued coding prompts, routes each through the
// thinker, and records the results as TASK records. A prompt whose
// keyword set matches a task completed inside the dedup window is
// skipped, which also keeps already-served queue entries from running
// twice.
type Coder struct {
	base
	records  *taskLog
	store    Memory
	thinker  Thinker
	interval time.Duration
	window   time.Duration
}

// NewCoder creates the coder agent.
func NewCoder(store Memory, thinker Thinker, cfg config.CoderAgentConfig) *Coder {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultCoderInterval
	}
	window := time.Duration(cfg.DedupDays) * 24 * time.Hour
	if window <= 0 {
		window = defaultCoderWindow
	}
	return &Coder{
		base:     base{kind: models.AgentCoder},
		records:  newTaskLog(store, models.AgentCoder),
		store:    store,
		thinker:  thinker,
		interval: interval,
		window:   window,
	}
}

// Run drains the queue once immediately, then on every tick until the
// context is canceled.
func (c *Coder) Run(ctx context.Context) {
	c.pass(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pass(ctx)
		}
	}
}

// Drain flushes any buffered result records.
func (c *Coder) Drain(ctx context.Context) error {
	return c.records.flush(ctx)
}

func (c *Coder) pass(ctx context.Context) {
	c.beat()
	since := time.Now().UTC().Add(-c.window)

	queued, err := c.store.Query(memory.QueryFilter{
		Kind:  models.KindPromptCapture,
		Since: since,
		Limit: coderBatchLimit,
	})
	if err != nil {
		log.Printf("[coder] WARNING: queue scan failed: %v", err)
		return
	}
	if len(queued) == 0 {
		return
	}

	done, err := c.completedKeys(since)
	if err != nil {
		log.Printf("[coder] WARNING: completed-task scan failed: %v", err)
		return
	}

	// Oldest first; the query returns newest first.
	for i := len(queued) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			break
		}
		prompt := strings.TrimSpace(queued[i].Payload)
		if prompt == "" {
			continue
		}
		key := keywordKey(prompt)
		if done[key] {
			continue
		}

		result, err := c.thinker.Think(ctx, models.ThinkRequest{
			Prompt: prompt,
			Agent:  models.AgentCoder,
		})
		if err != nil {
			// Left in the queue; the next pass retries it.
			log.Printf("[coder] WARNING: think failed for queued prompt: %v", err)
			continue
		}

		c.records.add(prompt, result.Answer)
		done[key] = true
		c.taskDone()
		log.Printf("[coder] completed queued prompt via %s (%.0f ms)", result.Backend, float64(result.Latency.Milliseconds()))
	}

	if err := c.records.flush(ctx); err != nil {
		log.Printf("[coder] WARNING: task flush failed: %v", err)
	}
}

// completedKeys collects the keyword signatures of tasks finished
// inside the dedup window.
func (c *Coder) completedKeys(since time.Time) (map[string]bool, error) {
	tasks, err := c.store.Query(memory.QueryFilter{
		Kind:      models.KindTask,
		AgentKind: models.AgentCoder,
		Since:     since,
		Limit:     coderDoneLimit,
	})
	if err != nil {
		return nil, err
	}

	done := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		done[keywordKey(task.Payload)] = true
	}
	return done, nil
}

// keywordKey reduces a prompt to a sorted keyword signature so
// rephrasings of the same request compare equal.
func keywordKey(text string) string {
	patterns := learning.ExtractPatterns(text)
	if len(patterns) == 0 {
		return strings.ToLower(strings.TrimSpace(text))
	}
	sort.Strings(patterns)
	return strings.Join(patterns, " ")
}
