package memory

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shayc/otto/pkg/models"
)

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("record not found")

// ErrNoCachedAnswer is returned when no stored consultation matches a
// cache lookup within its freshness window.
var ErrNoCachedAnswer = errors.New("no cached answer")

// QueryFilter narrows a record query. Zero fields are ignored.
type QueryFilter struct {
	// AgentKind filters by the writing agent.
	AgentKind models.AgentKind
	// Kind filters by record kind.
	Kind models.RecordKind
	// Since keeps records created at or after this time.
	Since time.Time
	// Limit caps returned rows. Zero means the default of 50; the
	// hard cap is 500.
	Limit int
	// Offset skips rows for pagination.
	Offset int
}

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

// insertRecord writes a fully populated record row. Called only from the
// store's writer goroutine so arrival order equals append order.
func (db *DB) insertRecord(rec *models.MemoryRecord) error {
	_, err := db.Exec(`
		INSERT INTO records (id, tier, kind, agent_kind, payload, response, backend,
			latency_ms, complexity, prompt_hash, created_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, string(rec.Tier), string(rec.Kind), nullString(string(rec.AgentKind)),
		rec.Payload, nullString(rec.Response), nullString(string(rec.Backend)),
		rec.LatencyMS, rec.Complexity, nullString(recordHash(rec)),
		formatTime(rec.CreatedAt), formatTime(rec.LastAccessedAt))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// recordHash returns the normalized prompt hash for consultation records,
// empty for everything else.
func recordHash(rec *models.MemoryRecord) string {
	if rec.Kind != models.KindConsultation {
		return ""
	}
	return promptHash(rec.Payload)
}

// GetRecord retrieves a record by id without promoting it.
func (db *DB) GetRecord(id string) (*models.MemoryRecord, error) {
	row := db.QueryRow(`
		SELECT id, tier, kind, agent_kind, payload, response, backend,
			latency_ms, complexity, created_at, last_accessed_at
		FROM records WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// QueryRecords lists records matching the filter, newest first.
func (db *DB) QueryRecords(f QueryFilter) ([]models.MemoryRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	query := `
		SELECT id, tier, kind, agent_kind, payload, response, backend,
			latency_ms, complexity, created_at, last_accessed_at
		FROM records`
	var conds []string
	var args []any

	if f.AgentKind != "" {
		conds = append(conds, "agent_kind = ?")
		args = append(args, string(f.AgentKind))
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(f.Since))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	// rowid breaks same-second ties in arrival order since all writes
	// go through the single writer goroutine.
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []models.MemoryRecord
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// PromoteOnAccess marks a warm or cold record hot again and bumps its
// access time. Hot records only get the recency bump; archived records
// are left where they are. The id never changes.
func (db *DB) PromoteOnAccess(id string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		var tier string
		row := tx.QueryRow("SELECT tier FROM records WHERE id = ?", id)
		if err := row.Scan(&tier); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return fmt.Errorf("read tier: %w", err)
		}

		now := formatTime(time.Now())
		switch models.Tier(tier) {
		case models.TierWarm, models.TierCold:
			if _, err := tx.Exec(
				"UPDATE records SET tier = ?, last_accessed_at = ? WHERE id = ?",
				string(models.TierHot), now, id); err != nil {
				return fmt.Errorf("promote record: %w", err)
			}
		case models.TierHot:
			if _, err := tx.Exec(
				"UPDATE records SET last_accessed_at = ? WHERE id = ?", now, id); err != nil {
				return fmt.Errorf("touch record: %w", err)
			}
		case models.TierArchive:
			// Archived records stay archived until the retention purge.
		}
		return nil
	})
}

// SearchCache finds the freshest stored consultation answering the prompt.
// It matches the normalized prompt hash first, then falls back to a prefix
// match, both bounded by the ttl. Returns ErrNoCachedAnswer on a miss.
func (db *DB) SearchCache(prompt string, ttl time.Duration) (*models.MemoryRecord, error) {
	cutoff := formatTime(time.Now().Add(-ttl))

	row := db.QueryRow(`
		SELECT id, tier, kind, agent_kind, payload, response, backend,
			latency_ms, complexity, created_at, last_accessed_at
		FROM records
		WHERE kind = ? AND prompt_hash = ? AND response != '' AND created_at >= ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, string(models.KindConsultation), promptHash(prompt), cutoff)

	rec, err := scanRecord(row)
	if err == nil {
		return rec, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	// Prefix fallback for near-identical prompts.
	prefix := normalizePrompt(prompt)
	if len(prefix) > 64 {
		prefix = prefix[:64]
	}
	if prefix == "" {
		return nil, ErrNoCachedAnswer
	}

	row = db.QueryRow(`
		SELECT id, tier, kind, agent_kind, payload, response, backend,
			latency_ms, complexity, created_at, last_accessed_at
		FROM records
		WHERE kind = ? AND response != '' AND created_at >= ? AND payload LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, string(models.KindConsultation), cutoff, likePrefix(prefix))

	rec, err = scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNoCachedAnswer
	}
	if err != nil {
		return nil, fmt.Errorf("cache prefix lookup: %w", err)
	}
	return rec, nil
}

// PurgeOlderThan deletes records created before the cutoff, regardless of
// tier. Returns the number of records deleted.
func (db *DB) PurgeOlderThan(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.Exec("DELETE FROM records WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old records: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

// HotCount returns the number of hot tier records.
func (db *DB) HotCount() (int, error) {
	var n int
	row := db.QueryRow("SELECT COUNT(*) FROM records WHERE tier = ?", string(models.TierHot))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("hot count: %w", err)
	}
	return n, nil
}

// HotFootprint approximates the hot tier working set size in bytes.
func (db *DB) HotFootprint() (int64, error) {
	var n sql.NullInt64
	row := db.QueryRow(`
		SELECT SUM(LENGTH(payload) + LENGTH(COALESCE(response, '')) + 256)
		FROM records WHERE tier = ?
	`, string(models.TierHot))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("hot footprint: %w", err)
	}
	return n.Int64, nil
}

// Stats summarizes the store contents.
type Stats struct {
	// ByTier counts records per storage tier.
	ByTier map[models.Tier]int
	// ByKind counts records per record kind.
	ByKind map[models.RecordKind]int
	// Total is the overall record count.
	Total int
	// HotFootprintBytes approximates the hot working set size.
	HotFootprintBytes int64
}

// CollectStats gathers per-tier and per-kind counts.
func (db *DB) CollectStats() (*Stats, error) {
	stats := &Stats{
		ByTier: make(map[models.Tier]int),
		ByKind: make(map[models.RecordKind]int),
	}

	rows, err := db.Query("SELECT tier, COUNT(*) FROM records GROUP BY tier")
	if err != nil {
		return nil, fmt.Errorf("tier counts: %w", err)
	}
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan tier count: %w", err)
		}
		stats.ByTier[models.Tier(tier)] = n
		stats.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.Query("SELECT kind, COUNT(*) FROM records GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("kind counts: %w", err)
	}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan kind count: %w", err)
		}
		stats.ByKind[models.RecordKind(kind)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	footprint, err := db.HotFootprint()
	if err != nil {
		return nil, err
	}
	stats.HotFootprintBytes = footprint

	return stats, nil
}

// scanner abstracts sql.Row and sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.MemoryRecord, error) {
	var rec models.MemoryRecord
	var agentKind, response, backend sql.NullString
	var createdAt, lastAccessedAt string

	err := row.Scan(&rec.ID, &rec.Tier, &rec.Kind, &agentKind, &rec.Payload,
		&response, &backend, &rec.LatencyMS, &rec.Complexity, &createdAt, &lastAccessedAt)
	if err != nil {
		return nil, err
	}

	rec.AgentKind = models.AgentKind(agentKind.String)
	rec.Response = response.String
	rec.Backend = models.Backend(backend.String)
	rec.CreatedAt, _ = parseTime(createdAt)
	rec.LastAccessedAt, _ = parseTime(lastAccessedAt)
	return &rec, nil
}

func scanRecordRows(rows *sql.Rows) (*models.MemoryRecord, error) {
	return scanRecord(rows)
}

// normalizePrompt lowercases and collapses whitespace so trivially
// reworded prompts hash alike.
func normalizePrompt(prompt string) string {
	return strings.Join(strings.Fields(strings.ToLower(prompt)), " ")
}

// promptHash returns the sha256 hex of the normalized prompt.
func promptHash(prompt string) string {
	sum := sha256.Sum256([]byte(normalizePrompt(prompt)))
	return hex.EncodeToString(sum[:])
}

// likePrefix escapes LIKE wildcards in the prefix and appends the
// match-anything suffix.
func likePrefix(prefix string) string {
	r := strings.NewReplacer("%", `\%`, "_", `\_`)
	return r.Replace(prefix) + "%"
}
