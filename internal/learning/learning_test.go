package learning

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shayc/otto/internal/memory"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := memory.Open(filepath.Join(t.TempDir(), "otto.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return NewStore(db)
}

func TestStore_Observe(t *testing.T) {
	s := setupTestStore(t)
	seen := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	if err := s.Observe("goroutine", "rec-1", seen); err != nil {
		t.Fatalf("Observe() error = %v, want nil", err)
	}

	got, err := s.Get("goroutine")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil, want learning")
	}
	if got.Occurrences != 1 {
		t.Errorf("Occurrences = %d, want 1", got.Occurrences)
	}
	if got.ExampleID != "rec-1" {
		t.Errorf("ExampleID = %v, want rec-1", got.ExampleID)
	}
	if !got.FirstSeen.Equal(seen) {
		t.Errorf("FirstSeen = %v, want %v", got.FirstSeen, seen)
	}
	if !got.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, seen)
	}
}

func TestStore_Observe_IncrementsExisting(t *testing.T) {
	s := setupTestStore(t)
	first := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	second := first.Add(2 * time.Hour)

	if err := s.Observe("goroutine", "rec-1", first); err != nil {
		t.Fatalf("Observe() first error = %v", err)
	}
	if err := s.Observe("goroutine", "rec-2", second); err != nil {
		t.Fatalf("Observe() second error = %v", err)
	}

	got, err := s.Get("goroutine")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Occurrences != 2 {
		t.Errorf("Occurrences = %d, want 2", got.Occurrences)
	}
	if !got.FirstSeen.Equal(first) {
		t.Errorf("FirstSeen = %v, want %v (must keep original)", got.FirstSeen, first)
	}
	if !got.LastSeen.Equal(second) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, second)
	}
	if got.ExampleID != "rec-2" {
		t.Errorf("ExampleID = %v, want rec-2 (latest wins)", got.ExampleID)
	}
}

func TestStore_Observe_NormalizesPattern(t *testing.T) {
	s := setupTestStore(t)
	seen := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	if err := s.Observe("  Goroutine ", "rec-1", seen); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if err := s.Observe("GOROUTINE", "rec-2", seen); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	got, err := s.Get("goroutine")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil for normalized pattern")
	}
	if got.Occurrences != 2 {
		t.Errorf("Occurrences = %d, want 2 (case variants must collapse)", got.Occurrences)
	}
}

func TestStore_Observe_EmptyPattern(t *testing.T) {
	s := setupTestStore(t)

	err := s.Observe("   ", "rec-1", time.Now())
	if err == nil {
		t.Error("Observe() error = nil, want error for empty pattern")
	}
}

func TestStore_Observe_NoExample(t *testing.T) {
	s := setupTestStore(t)

	if err := s.Observe("goroutine", "", time.Now()); err != nil {
		t.Fatalf("Observe() error = %v, want nil", err)
	}

	got, err := s.Get("goroutine")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ExampleID != "" {
		t.Errorf("ExampleID = %v, want empty", got.ExampleID)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.Get("nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if got != nil {
		t.Errorf("Get() = %v, want nil for unknown pattern", got)
	}
}

func TestStore_Top(t *testing.T) {
	s := setupTestStore(t)
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	// goroutine x3, channel x2, mutex x1
	for i := 0; i < 3; i++ {
		if err := s.Observe("goroutine", "", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("Observe() error = %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := s.Observe("channel", "", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("Observe() error = %v", err)
		}
	}
	if err := s.Observe("mutex", "", base); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	got, err := s.Top(2)
	if err != nil {
		t.Fatalf("Top() error = %v, want nil", err)
	}
	if len(got) != 2 {
		t.Fatalf("Top(2) returned %d learnings, want 2", len(got))
	}
	if got[0].Pattern != "goroutine" {
		t.Errorf("First pattern = %v, want goroutine", got[0].Pattern)
	}
	if got[0].Occurrences != 3 {
		t.Errorf("First occurrences = %d, want 3", got[0].Occurrences)
	}
	if got[1].Pattern != "channel" {
		t.Errorf("Second pattern = %v, want channel", got[1].Pattern)
	}
}

func TestStore_Top_TieBreaksOnRecency(t *testing.T) {
	s := setupTestStore(t)
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	if err := s.Observe("older", "", base); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if err := s.Observe("newer", "", base.Add(time.Hour)); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	got, err := s.Top(10)
	if err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Top() returned %d learnings, want 2", len(got))
	}
	if got[0].Pattern != "newer" {
		t.Errorf("First pattern = %v, want newer (recent first among ties)", got[0].Pattern)
	}
}

func TestStore_Top_Empty(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.Top(5)
	if err != nil {
		t.Fatalf("Top() error = %v, want nil", err)
	}
	if len(got) != 0 {
		t.Errorf("Top() returned %d learnings, want 0", len(got))
	}
}

func TestStore_Count(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now()

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}

	if err := s.Observe("goroutine", "", now); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if err := s.Observe("goroutine", "", now); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if err := s.Observe("channel", "", now); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	n, err = s.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2 distinct patterns", n)
	}
}

func TestExtractPatterns(t *testing.T) {
	got := ExtractPatterns("How should I refactor the goroutine pool in the scheduler?")

	want := []string{"refactor", "goroutine", "pool", "scheduler"}
	if len(got) != len(want) {
		t.Fatalf("ExtractPatterns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pattern[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExtractPatterns_Lowercases(t *testing.T) {
	got := ExtractPatterns("Debug SQLite WAL checkpoint")

	want := []string{"debug", "sqlite", "wal", "checkpoint"}
	if len(got) != len(want) {
		t.Fatalf("ExtractPatterns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pattern[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExtractPatterns_Deduplicates(t *testing.T) {
	got := ExtractPatterns("retry the retry loop with retry backoff")

	want := []string{"retry", "loop", "backoff"}
	if len(got) != len(want) {
		t.Fatalf("ExtractPatterns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pattern[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExtractPatterns_SplitsOnPunctuation(t *testing.T) {
	got := ExtractPatterns("memory.Store/Append fails")

	want := []string{"memory", "store", "append", "fails"}
	if len(got) != len(want) {
		t.Fatalf("ExtractPatterns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pattern[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExtractPatterns_Empty(t *testing.T) {
	if got := ExtractPatterns(""); len(got) != 0 {
		t.Errorf("ExtractPatterns(\"\") = %v, want empty", got)
	}
	// Nothing but stop words and short tokens
	if got := ExtractPatterns("is it in the of a to"); len(got) != 0 {
		t.Errorf("ExtractPatterns(stop words) = %v, want empty", got)
	}
}
