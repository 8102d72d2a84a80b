// Package learning distills recurring keyword patterns out of
// consultation history into the learnings table.
package learning

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shayc/otto/internal/memory"
)

// Learning is one recurring pattern with its sighting history.
type Learning struct {
	ID          string    // Unique identifier
	Pattern     string    // Normalized keyword (unique)
	Occurrences int64     // Sightings so far
	FirstSeen   time.Time // When the pattern was first observed
	LastSeen    time.Time // When the pattern was last observed
	ExampleID   string    // Memory record exhibiting the pattern (optional)
}

// Store reads and writes learnings on the shared otto database.
type Store struct {
	db *memory.DB
}

// NewStore wraps the shared database.
func NewStore(db *memory.DB) *Store {
	return &Store{db: db}
}

// Observe records one sighting of a pattern. The first sighting
// inserts a row; later ones bump occurrences and refresh last_seen
// and the example.
func (s *Store) Observe(pattern, exampleID string, seenAt time.Time) error {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return fmt.Errorf("empty pattern")
	}

	_, err := s.db.Exec(`
		INSERT INTO learnings (id, pattern, occurrences, first_seen, last_seen, example_id)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT(pattern) DO UPDATE SET
			occurrences = occurrences + 1,
			last_seen = excluded.last_seen,
			example_id = excluded.example_id
	`, uuid.New().String(), pattern, formatTime(seenAt), formatTime(seenAt), nullString(exampleID))
	if err != nil {
		return fmt.Errorf("observe pattern: %w", err)
	}
	return nil
}

// Get retrieves one learning by its pattern, nil when absent.
func (s *Store) Get(pattern string) (*Learning, error) {
	pattern = strings.ToLower(strings.TrimSpace(pattern))

	row := s.db.QueryRow(`
		SELECT id, pattern, occurrences, first_seen, last_seen, example_id
		FROM learnings WHERE pattern = ?
	`, pattern)

	l, err := scanLearning(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query learning: %w", err)
	}
	return l, nil
}

// Top returns the n most frequent patterns, most recent first among
// ties.
func (s *Store) Top(n int) ([]Learning, error) {
	if n <= 0 {
		n = 10
	}

	rows, err := s.db.Query(`
		SELECT id, pattern, occurrences, first_seen, last_seen, example_id
		FROM learnings
		ORDER BY occurrences DESC, last_seen DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query top learnings: %w", err)
	}
	defer rows.Close()

	var learnings []Learning
	for rows.Next() {
		l, err := scanLearning(rows)
		if err != nil {
			return nil, fmt.Errorf("scan learning: %w", err)
		}
		learnings = append(learnings, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate learnings: %w", err)
	}
	return learnings, nil
}

// Count returns how many distinct patterns exist.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM learnings").Scan(&n); err != nil {
		return 0, fmt.Errorf("count learnings: %w", err)
	}
	return n, nil
}

// scanner covers sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanLearning(s scanner) (*Learning, error) {
	var (
		l         Learning
		firstSeen string
		lastSeen  string
		exampleID sql.NullString
	)

	err := s.Scan(&l.ID, &l.Pattern, &l.Occurrences, &firstSeen, &lastSeen, &exampleID)
	if err != nil {
		return nil, err
	}

	l.FirstSeen, _ = parseTime(firstSeen)
	l.LastSeen, _ = parseTime(lastSeen)
	l.ExampleID = exampleID.String
	return &l, nil
}

// Helper functions

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// nullString converts an empty string to a NULL-storing value.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
