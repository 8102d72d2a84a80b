// Package agents implements the supervised work loops: MONITOR,
// INDEXER, LEARNER, CODER, and REVIEWER. Every agent runs a ticker
// loop in the shape of the power monitor's, buffers the TASK records
// it produces, and flushes the buffer each pass and once more on
// Drain.
package agents

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shayc/otto/internal/memory"
	"github.com/shayc/otto/pkg/models"
)

// Memory is the slice of the tiered store the agents use.
type Memory interface {
	Append(ctx context.Context, rec *models.MemoryRecord) error
	Query(f memory.QueryFilter) ([]models.MemoryRecord, error)
	Stats() (*memory.Stats, error)
}

// Thinker routes reasoning requests. Satisfied by the router.
type Thinker interface {
	Think(ctx context.Context, req models.ThinkRequest) (models.ThinkResult, error)
}

// ProfileSource reports the profile the daemon currently runs under.
// Satisfied by the supervisor.
type ProfileSource interface {
	ActiveProfile() models.Profile
}

// base carries the kind and the progress counters every agent shares.
type base struct {
	kind     models.AgentKind
	lastBeat atomic.Int64
	tasks    atomic.Int64
}

func (b *base) Kind() models.AgentKind { return b.kind }

func (b *base) beat() {
	b.lastBeat.Store(time.Now().UTC().UnixNano())
}

func (b *base) taskDone() {
	b.tasks.Add(1)
}

// Progress reports the last work-loop beat and the completed task
// count.
func (b *base) Progress() (time.Time, int64) {
	nanos := b.lastBeat.Load()
	if nanos == 0 {
		return time.Time{}, b.tasks.Load()
	}
	return time.Unix(0, nanos).UTC(), b.tasks.Load()
}

// taskLog buffers TASK records between flushes so a stopping agent can
// hand its unwritten tail to Drain instead of losing it.
type taskLog struct {
	store Memory
	kind  models.AgentKind

	mu      sync.Mutex
	pending []*models.MemoryRecord
}

func newTaskLog(store Memory, kind models.AgentKind) *taskLog {
	return &taskLog{store: store, kind: kind}
}

// add buffers one TASK record. The timestamp is the moment of the
// work, not of the eventual flush.
func (l *taskLog) add(payload, response string) {
	rec := &models.MemoryRecord{
		Kind:      models.KindTask,
		AgentKind: l.kind,
		Payload:   payload,
		Response:  response,
		CreatedAt: time.Now().UTC(),
	}
	l.mu.Lock()
	l.pending = append(l.pending, rec)
	l.mu.Unlock()
}

// flush appends the buffered records in order. On failure the
// unwritten tail stays buffered for the next flush.
func (l *taskLog) flush(ctx context.Context) error {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for i, rec := range pending {
		if err := l.store.Append(ctx, rec); err != nil {
			l.mu.Lock()
			l.pending = append(pending[i:], l.pending...)
			l.mu.Unlock()
			return err
		}
	}
	return nil
}

func (l *taskLog) pendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
