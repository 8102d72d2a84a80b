package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const backupPrefix = "otto-"

// Backup writes a consistent snapshot of the live database into dir
// using VACUUM INTO and returns the snapshot path. Safe while the
// writer goroutine is running.
func (s *Store) Backup(dir string) (string, error) {
	if s.isClosed() {
		return "", ErrStorageUnavailable
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	name := backupPrefix + time.Now().UTC().Format("20060102T150405Z") + ".db"
	dest := filepath.Join(dir, name)

	if _, err := s.db.Exec("VACUUM INTO ?", dest); err != nil {
		return "", fmt.Errorf("backup database: %w", err)
	}
	return dest, nil
}

// PruneBackups deletes all but the keep newest snapshots in dir and
// returns how many were removed.
func PruneBackups(dir string, keep int) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, ".db") {
			names = append(names, name)
		}
	}
	if keep < 0 {
		keep = 0
	}
	if len(names) <= keep {
		return 0, nil
	}

	// Timestamped names sort chronologically.
	sort.Strings(names)

	removed := 0
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, fmt.Errorf("remove old backup: %w", err)
		}
		removed++
	}
	return removed, nil
}

// Purge deletes records older than the retention window regardless of
// tier and returns how many were removed.
func (s *Store) Purge(olderThan time.Duration) (int64, error) {
	if s.isClosed() {
		return 0, ErrStorageUnavailable
	}
	return s.db.PurgeOlderThan(olderThan)
}
