package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shayc/otto/pkg/models"
)

// AgeConfig sets the tier transition windows for an aging pass.
type AgeConfig struct {
	// HotWindow is how long an untouched hot record stays hot.
	HotWindow time.Duration
	// WarmWindow is how long an untouched warm record stays warm.
	WarmWindow time.Duration
	// Retention is how long an untouched cold record escapes the
	// archive. Archived records untouched for twice this are deleted.
	Retention time.Duration
}

// AgeStats reports what one aging pass moved.
type AgeStats struct {
	HotToWarm       int64
	WarmToCold      int64
	ColdToArchive   int64
	BudgetDemotions int64
	Deleted         int64
}

// Age runs one aging pass: records step down the tiers by access
// recency, then least recently accessed hot records are demoted until
// the hot working set fits the budget. Transitions run bottom up so a
// record moves at most one tier per pass. Nothing is deleted except
// archived records past double retention. The whole pass runs in one
// transaction.
func (s *Store) Age(cfg AgeConfig) (*AgeStats, error) {
	if s.isClosed() {
		return nil, ErrStorageUnavailable
	}

	stats := &AgeStats{}
	now := time.Now()

	err := s.db.Transaction(func(tx *sql.Tx) error {
		result, err := tx.Exec(
			"DELETE FROM records WHERE tier = ? AND last_accessed_at < ?",
			string(models.TierArchive), formatTime(now.Add(-2*cfg.Retention)))
		if err != nil {
			return fmt.Errorf("delete expired archive: %w", err)
		}
		stats.Deleted, _ = result.RowsAffected()

		stats.ColdToArchive, err = demoteOlderThan(tx, models.TierCold, models.TierArchive, now.Add(-cfg.Retention))
		if err != nil {
			return err
		}
		stats.WarmToCold, err = demoteOlderThan(tx, models.TierWarm, models.TierCold, now.Add(-cfg.WarmWindow))
		if err != nil {
			return err
		}
		stats.HotToWarm, err = demoteOlderThan(tx, models.TierHot, models.TierWarm, now.Add(-cfg.HotWindow))
		if err != nil {
			return err
		}

		demoted, err := enforceBudget(tx, s.budget.Load())
		if err != nil {
			return err
		}
		stats.BudgetDemotions = demoted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// demoteOlderThan moves every record in from whose last access predates
// the cutoff into to, and returns how many moved.
func demoteOlderThan(tx *sql.Tx, from, to models.Tier, cutoff time.Time) (int64, error) {
	result, err := tx.Exec(
		"UPDATE records SET tier = ? WHERE tier = ? AND last_accessed_at < ?",
		string(to), string(from), formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("demote %s to %s: %w", from, to, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}

// enforceBudget demotes least recently accessed hot records to warm
// until the hot footprint fits the budget. A budget of zero or less
// disables enforcement.
func enforceBudget(tx *sql.Tx, budget int64) (int64, error) {
	if budget <= 0 {
		return 0, nil
	}

	footprint, err := hotFootprintTx(tx)
	if err != nil {
		return 0, err
	}

	var demoted int64
	for footprint > budget {
		ids, sizes, err := oldestHot(tx, 64)
		if err != nil {
			return demoted, err
		}
		if len(ids) == 0 {
			break
		}
		for i, id := range ids {
			if _, err := tx.Exec(
				"UPDATE records SET tier = ? WHERE id = ?",
				string(models.TierWarm), id); err != nil {
				return demoted, fmt.Errorf("budget demote: %w", err)
			}
			demoted++
			footprint -= sizes[i]
			if footprint <= budget {
				break
			}
		}
	}
	return demoted, nil
}

func hotFootprintTx(tx *sql.Tx) (int64, error) {
	var n sql.NullInt64
	row := tx.QueryRow(`
		SELECT SUM(LENGTH(payload) + LENGTH(COALESCE(response, '')) + 256)
		FROM records WHERE tier = ?
	`, string(models.TierHot))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("hot footprint: %w", err)
	}
	return n.Int64, nil
}

// oldestHot returns up to limit hot record ids and their approximate
// sizes, least recently accessed first.
func oldestHot(tx *sql.Tx, limit int) ([]string, []int64, error) {
	rows, err := tx.Query(`
		SELECT id, LENGTH(payload) + LENGTH(COALESCE(response, '')) + 256
		FROM records WHERE tier = ?
		ORDER BY last_accessed_at ASC, rowid ASC LIMIT ?
	`, string(models.TierHot), limit)
	if err != nil {
		return nil, nil, fmt.Errorf("list oldest hot: %w", err)
	}
	defer rows.Close()

	var ids []string
	var sizes []int64
	for rows.Next() {
		var id string
		var size int64
		if err := rows.Scan(&id, &size); err != nil {
			return nil, nil, fmt.Errorf("scan oldest hot: %w", err)
		}
		ids = append(ids, id)
		sizes = append(sizes, size)
	}
	return ids, sizes, rows.Err()
}
