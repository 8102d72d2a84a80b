package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shayc/otto/internal/memory"
	"github.com/shayc/otto/pkg/models"
)

var (
	memoryQueryAgent string
	memoryQueryKind  string
	memoryQuerySince time.Duration
	memoryQueryLimit int
	memoryBackupDir  string
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage the tiered memory store",
}

var memoryQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List memory records",
	Long: `List memory records, newest first.

Examples:
  otto memory query --kind CONSULTATION --limit 10
  otto memory query --agent MONITOR --since 24h`,
	Args: cobra.NoArgs,
	RunE: runMemoryQuery,
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-tier and per-kind record counts",
	Args:  cobra.NoArgs,
	RunE:  runMemoryStats,
}

var memoryBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a consistent database snapshot",
	Args:  cobra.NoArgs,
	RunE:  runMemoryBackup,
}

var memoryCaptureCmd = &cobra.Command{
	Use:   "capture <text>",
	Short: "Store captured prompt text",
	Long: `Store one piece of prompt text as a captured record.

This is the hook entry point: editor and shell integrations call it to
feed prompts into the store, where the indexing and coder agents pick
them up.`,
	Args: cobra.ExactArgs(1),
	RunE: runMemoryCapture,
}

func init() {
	memoryQueryCmd.Flags().StringVar(&memoryQueryAgent, "agent", "", "Filter by writing agent kind")
	memoryQueryCmd.Flags().StringVar(&memoryQueryKind, "kind", "", "Filter by record kind (CONSULTATION, TASK, PROMPT_CAPTURE)")
	memoryQueryCmd.Flags().DurationVar(&memoryQuerySince, "since", 0, "Only records newer than this age (e.g. 24h)")
	memoryQueryCmd.Flags().IntVar(&memoryQueryLimit, "limit", 20, "Maximum rows to return")

	memoryBackupCmd.Flags().StringVar(&memoryBackupDir, "dir", "", "Backup directory (default: backups beside the database)")

	memoryCmd.AddCommand(memoryQueryCmd)
	memoryCmd.AddCommand(memoryStatsCmd)
	memoryCmd.AddCommand(memoryBackupCmd)
	memoryCmd.AddCommand(memoryCaptureCmd)
}

func runMemoryQuery(cmd *cobra.Command, args []string) error {
	filter := memory.QueryFilter{
		Limit: memoryQueryLimit,
	}

	if memoryQueryAgent != "" {
		kind := models.AgentKind(strings.ToUpper(memoryQueryAgent))
		if !kind.Valid() {
			return fmt.Errorf("unknown agent kind %q", memoryQueryAgent)
		}
		filter.AgentKind = kind
	}
	if memoryQueryKind != "" {
		kind := models.RecordKind(strings.ToUpper(memoryQueryKind))
		if !kind.Valid() {
			return fmt.Errorf("unknown record kind %q", memoryQueryKind)
		}
		filter.Kind = kind
	}
	if memoryQuerySince > 0 {
		filter.Since = time.Now().Add(-memoryQuerySince)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.QueryRecords(filter)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No matching records.")
		return nil
	}

	for _, rec := range records {
		agent := "-"
		if rec.AgentKind != "" {
			agent = string(rec.AgentKind)
		}
		fmt.Printf("%s  %-14s %-10s %-8s %s ago  %s\n",
			shortID(rec.ID), rec.Kind, agent, rec.Tier,
			formatDuration(time.Since(rec.CreatedAt)), snippet(rec.Payload, 60))
	}
	return nil
}

func runMemoryStats(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.CollectStats()
	if err != nil {
		return fmt.Errorf("collect stats: %w", err)
	}

	fmt.Printf("Records: %d\n", stats.Total)

	fmt.Println("  By tier:")
	for _, tier := range models.AllTiers() {
		if n := stats.ByTier[tier]; n > 0 {
			fmt.Printf("    %s: %d\n", tier, n)
		}
	}

	fmt.Println("  By kind:")
	for kind, n := range stats.ByKind {
		fmt.Printf("    %s: %d\n", kind, n)
	}

	fmt.Printf("  Hot footprint: %d KB\n", stats.HotFootprintBytes/1024)
	return nil
}

func runMemoryBackup(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}

	store := memory.NewStore(db, 0)
	defer store.Close()

	dir := memoryBackupDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(store.Path()), "backups")
	}

	path, err := store.Backup(dir)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	fmt.Printf("Backup written to %s\n", path)
	return nil
}

func runMemoryCapture(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(args[0])
	if text == "" {
		return fmt.Errorf("empty capture text")
	}

	db, err := openDB()
	if err != nil {
		return err
	}

	store := memory.NewStore(db, 0)
	defer store.Close()

	rec := &models.MemoryRecord{
		Kind:    models.KindPromptCapture,
		Payload: text,
	}
	if err := store.Append(context.Background(), rec); err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	fmt.Printf("Captured (record %s)\n", shortID(rec.ID))
	return nil
}

// shortID trims a UUID to its first group for display.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// snippet truncates text to one display line.
func snippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
