package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/shayc/otto/pkg/models"
)

// ErrStorageUnavailable is returned for operations on a closed store.
var ErrStorageUnavailable = errors.New("memory store unavailable")

// appendRequest carries one record to the writer goroutine. The reply
// channel is buffered so the writer never blocks on an abandoned caller.
type appendRequest struct {
	rec   *models.MemoryRecord
	reply chan error
}

// Store is the tiered interaction store. All writes funnel through a
// single writer goroutine so records land in arrival order; reads go
// straight to the database.
type Store struct {
	db     *DB
	budget atomic.Int64

	queue chan appendRequest
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

const appendQueueSize = 256

// NewStore wraps an open database and starts the writer goroutine. The
// store owns the database from this point and closes it on Close.
func NewStore(db *DB, budgetBytes int64) *Store {
	s := &Store{
		db:    db,
		queue: make(chan appendRequest, appendQueueSize),
		done:  make(chan struct{}),
	}
	s.budget.Store(budgetBytes)
	go s.writeLoop()
	return s
}

// writeLoop drains the append queue until Close closes it.
func (s *Store) writeLoop() {
	defer close(s.done)
	for req := range s.queue {
		if req.rec == nil {
			// Flush barrier: everything before it is already committed.
			req.reply <- nil
			continue
		}
		req.reply <- s.db.insertRecord(req.rec)
	}
}

// Append stores a record. It assigns the id and timestamps, forces the
// hot tier, and returns once the writer has committed the row. Records
// appended concurrently are persisted in the order their requests
// arrive at the queue.
func (s *Store) Append(ctx context.Context, rec *models.MemoryRecord) error {
	if rec == nil {
		return errors.New("nil record")
	}
	if !rec.Kind.Valid() {
		return fmt.Errorf("invalid record kind: %s", rec.Kind)
	}
	if rec.AgentKind != "" && !rec.AgentKind.Valid() {
		return fmt.Errorf("invalid agent kind: %s", rec.AgentKind)
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.LastAccessedAt = rec.CreatedAt
	rec.Tier = models.TierHot

	req := appendRequest{rec: rec, reply: make(chan error, 1)}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStorageUnavailable
	}
	select {
	case s.queue <- req:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Read returns the record without counting it as an access. Callers
// that mean to use the record call PromoteOnAccess.
func (s *Store) Read(id string) (*models.MemoryRecord, error) {
	if s.isClosed() {
		return nil, ErrStorageUnavailable
	}
	return s.db.GetRecord(id)
}

// PromoteOnAccess records an access: warm and cold records move back to
// the hot tier, hot records refresh their recency, archived records are
// left alone.
func (s *Store) PromoteOnAccess(id string) error {
	if s.isClosed() {
		return ErrStorageUnavailable
	}
	return s.db.PromoteOnAccess(id)
}

// Query lists matching records without promoting them.
func (s *Store) Query(f QueryFilter) ([]models.MemoryRecord, error) {
	if s.isClosed() {
		return nil, ErrStorageUnavailable
	}
	return s.db.QueryRecords(f)
}

// Cached looks up a stored consultation for the prompt within the ttl.
// A hit counts as an access and promotes the record.
func (s *Store) Cached(prompt string, ttl time.Duration) (*models.MemoryRecord, error) {
	if s.isClosed() {
		return nil, ErrStorageUnavailable
	}
	rec, err := s.db.SearchCache(prompt, ttl)
	if err != nil {
		return nil, err
	}
	if err := s.db.PromoteOnAccess(rec.ID); err != nil {
		return nil, err
	}
	if rec.Tier == models.TierWarm || rec.Tier == models.TierCold {
		rec.Tier = models.TierHot
	}
	return rec, nil
}

// Stats reports store contents.
func (s *Store) Stats() (*Stats, error) {
	if s.isClosed() {
		return nil, ErrStorageUnavailable
	}
	return s.db.CollectStats()
}

// SetBudget updates the hot tier budget in bytes. The next aging pass
// enforces it.
func (s *Store) SetBudget(bytes int64) {
	s.budget.Store(bytes)
}

// Budget returns the current hot tier budget in bytes.
func (s *Store) Budget() int64 {
	return s.budget.Load()
}

// DB exposes the underlying database for stores that share it.
func (s *Store) DB() *DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// Flush blocks until every append accepted so far has been committed.
func (s *Store) Flush(ctx context.Context) error {
	req := appendRequest{rec: nil, reply: make(chan error, 1)}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	select {
	case s.queue <- req:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-req.reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting appends, drains the queue, and closes the
// database. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.db.Close()
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
