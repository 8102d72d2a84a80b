package agents

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shayc/otto/pkg/models"
)

func TestReviewer_ReviewsCoderResult(t *testing.T) {
	store := newTestMemory(t)
	thinker := &fakeThinker{replies: []thinkReply{{answer: "looks correct"}}}
	rv := NewReviewer(store, thinker)
	rv.lastScan = time.Now().UTC().Add(-time.Hour)
	seedRecord(t, store, &models.MemoryRecord{
		Kind:      models.KindTask,
		AgentKind: models.AgentCoder,
		Payload:   "add retry logic to the uploader",
		Response:  "added exponential backoff",
	})

	rv.pass(context.Background())

	if got := thinker.callCount(); got != 1 {
		t.Fatalf("think calls = %d, want 1", got)
	}
	prompt := thinker.lastPrompt()
	if !strings.Contains(prompt, "add retry logic to the uploader") {
		t.Errorf("review prompt missing the task text: %q", prompt)
	}
	if !strings.Contains(prompt, "added exponential backoff") {
		t.Errorf("review prompt missing the result text: %q", prompt)
	}

	reviews := queryKind(t, store, models.KindTask, models.AgentReviewer)
	if len(reviews) != 1 {
		t.Fatalf("got %d review records, want 1", len(reviews))
	}
	if !strings.HasPrefix(reviews[0].Payload, "review: ") {
		t.Errorf("review payload = %q, want review prefix", reviews[0].Payload)
	}
	if reviews[0].Response != "looks correct" {
		t.Errorf("review response = %q, want the critique", reviews[0].Response)
	}
	if _, tasks := rv.Progress(); tasks != 1 {
		t.Errorf("tasks = %d, want 1", tasks)
	}
}

func TestReviewer_DoesNotRereview(t *testing.T) {
	store := newTestMemory(t)
	thinker := &fakeThinker{}
	rv := NewReviewer(store, thinker)
	rv.lastScan = time.Now().UTC().Add(-time.Hour)
	seedRecord(t, store, &models.MemoryRecord{
		Kind:      models.KindTask,
		AgentKind: models.AgentCoder,
		Payload:   "add retry logic",
		Response:  "done",
	})

	rv.pass(context.Background())
	// Guard against same-second watermark overlap on the second pass.
	rv.lastScan = rv.lastScan.Add(time.Second)
	rv.pass(context.Background())

	if got := thinker.callCount(); got != 1 {
		t.Errorf("think calls = %d, want 1 (no re-review)", got)
	}
}

func TestReviewer_IgnoresOtherAgents(t *testing.T) {
	store := newTestMemory(t)
	thinker := &fakeThinker{}
	rv := NewReviewer(store, thinker)
	rv.lastScan = time.Now().UTC().Add(-time.Hour)
	seedRecord(t, store, &models.MemoryRecord{
		Kind:      models.KindTask,
		AgentKind: models.AgentIndexer,
		Payload:   "indexed 12 files",
	})
	seedRecord(t, store, &models.MemoryRecord{
		Kind:     models.KindConsultation,
		Payload:  "what is the version",
		Response: "0.3.0",
	})

	rv.pass(context.Background())

	if got := thinker.callCount(); got != 0 {
		t.Errorf("think calls = %d, want 0 (only coder tasks reviewed)", got)
	}
}

func TestReviewer_SkipsFailedReview(t *testing.T) {
	store := newTestMemory(t)
	thinker := &fakeThinker{replies: []thinkReply{{err: context.DeadlineExceeded}}}
	rv := NewReviewer(store, thinker)
	rv.lastScan = time.Now().UTC().Add(-time.Hour)
	seedRecord(t, store, &models.MemoryRecord{
		Kind:      models.KindTask,
		AgentKind: models.AgentCoder,
		Payload:   "add retry logic",
		Response:  "done",
	})

	rv.pass(context.Background())

	if reviews := queryKind(t, store, models.KindTask, models.AgentReviewer); len(reviews) != 0 {
		t.Errorf("got %d review records after failed think, want 0", len(reviews))
	}
	// Best-effort: the watermark advanced, so the task is not retried.
	rv.lastScan = rv.lastScan.Add(time.Second)
	rv.pass(context.Background())
	if got := thinker.callCount(); got != 1 {
		t.Errorf("think calls = %d, want 1 (failed review not retried)", got)
	}
}

func TestSnippet(t *testing.T) {
	if got := snippet("short", 10); got != "short" {
		t.Errorf("snippet() = %q, want unchanged", got)
	}
	long := strings.Repeat("x", 200)
	got := snippet(long, 120)
	if len(got) != 123 || !strings.HasSuffix(got, "...") {
		t.Errorf("snippet() len = %d, want 123 with ellipsis", len(got))
	}
}
