package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shayc/otto/pkg/models"
)

// InsertHeartbeat persists one status snapshot.
func (db *DB) InsertHeartbeat(snap *models.Snapshot) error {
	onAC := 0
	if snap.OnAC {
		onAC = 1
	}

	_, err := db.Exec(`
		INSERT INTO heartbeats (uptime_seconds, memory_bytes, running_agents, hot_records,
			battery_percent, on_ac, profile, est_runtime_hours, metrics_collected,
			tokens_used, cost_usd, taken_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, int64(snap.Uptime.Seconds()), snap.MemoryFootprintBytes, snap.RunningAgents,
		snap.HotRecords, snap.BatteryPercent, onAC, string(snap.Profile),
		snap.EstimatedRuntimeHours, snap.MetricsCollected, snap.TokensUsed,
		snap.CostUSD, formatTime(snap.TakenAt))
	if err != nil {
		return fmt.Errorf("insert heartbeat: %w", err)
	}
	return nil
}

// LatestHeartbeat returns the most recent snapshot, or ErrNotFound when
// none has been recorded yet.
func (db *DB) LatestHeartbeat() (*models.Snapshot, error) {
	row := db.QueryRow(`
		SELECT uptime_seconds, memory_bytes, running_agents, hot_records,
			battery_percent, on_ac, profile, est_runtime_hours, metrics_collected,
			tokens_used, cost_usd, taken_at
		FROM heartbeats ORDER BY id DESC LIMIT 1
	`)

	snap, err := scanHeartbeat(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest heartbeat: %w", err)
	}
	return snap, nil
}

// RecentHeartbeats returns up to limit snapshots, newest first.
func (db *DB) RecentHeartbeats(limit int) ([]models.Snapshot, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	rows, err := db.Query(`
		SELECT uptime_seconds, memory_bytes, running_agents, hot_records,
			battery_percent, on_ac, profile, est_runtime_hours, metrics_collected,
			tokens_used, cost_usd, taken_at
		FROM heartbeats ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent heartbeats: %w", err)
	}
	defer rows.Close()

	var snaps []models.Snapshot
	for rows.Next() {
		snap, err := scanHeartbeat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan heartbeat: %w", err)
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

// PruneHeartbeats keeps the newest keep rows and deletes the rest.
func (db *DB) PruneHeartbeats(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	result, err := db.Exec(`
		DELETE FROM heartbeats WHERE id NOT IN (
			SELECT id FROM heartbeats ORDER BY id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune heartbeats: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

func scanHeartbeat(row scanner) (*models.Snapshot, error) {
	var snap models.Snapshot
	var uptimeSeconds int64
	var onAC int
	var takenAt string

	err := row.Scan(&uptimeSeconds, &snap.MemoryFootprintBytes, &snap.RunningAgents,
		&snap.HotRecords, &snap.BatteryPercent, &onAC, &snap.Profile,
		&snap.EstimatedRuntimeHours, &snap.MetricsCollected, &snap.TokensUsed,
		&snap.CostUSD, &takenAt)
	if err != nil {
		return nil, err
	}

	snap.Uptime = time.Duration(uptimeSeconds) * time.Second
	snap.OnAC = onAC != 0
	snap.TakenAt, _ = parseTime(takenAt)
	return &snap, nil
}
