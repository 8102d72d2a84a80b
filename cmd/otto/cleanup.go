package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/shayc/otto/internal/config"
	"github.com/shayc/otto/internal/memory"
)

var (
	cleanupDays        int
	cleanupKeepBackups int
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge old records and compact the database",
	Long: `Delete records older than the retention window, prune old backup
snapshots, and compact the database file.

The daemon runs the same maintenance on a schedule; cleanup is for
reclaiming space immediately or for databases no daemon tends.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "Purge records older than this many days (default: configured retention)")
	cleanupCmd.Flags().IntVar(&cleanupKeepBackups, "keep-backups", 7, "Backup snapshots to keep")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	days := cleanupDays
	if days <= 0 {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		days = cfg.Memory.RetentionDays
	}

	db, err := openDB()
	if err != nil {
		return err
	}

	store := memory.NewStore(db, 0)
	defer store.Close()

	removed, err := store.Purge(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	fmt.Printf("Purged %d records older than %d days\n", removed, days)

	backupDir := filepath.Join(filepath.Dir(store.Path()), "backups")
	pruned, err := memory.PruneBackups(backupDir, cleanupKeepBackups)
	if err != nil {
		return fmt.Errorf("prune backups: %w", err)
	}
	if pruned > 0 {
		fmt.Printf("Pruned %d old backups\n", pruned)
	}

	if _, err := db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	fmt.Println("Database compacted")
	return nil
}
