package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shayc/otto/internal/memory"
)

var rootCmd = &cobra.Command{
	Use:   "otto",
	Short: "Adaptive background agent runtime",
	Long: `Otto runs a roster of background agents sized to the machine's
power state. A sensor-driven profile decides which agents run, which
reasoning backend serves their questions, and how much memory the
tiered store may hold hot.

Start the daemon with 'otto run', then inspect it from another
terminal with 'otto status' or 'otto status --watch'.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(thinkCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath finds the database to inspect: the project database in
// the working directory when present, the global one otherwise.
func resolveDBPath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	dbPath := memory.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		dbPath = memory.GlobalDBPath()
	}
	return dbPath, nil
}

// openDB opens an existing database for read-side commands. It does
// not create one: a missing database means the daemon never ran here.
func openDB() (*memory.DB, error) {
	dbPath, err := resolveDBPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no database at %s, run 'otto run' or 'otto init' first", dbPath)
	}

	db, err := memory.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
