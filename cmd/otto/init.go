package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shayc/otto/internal/config"
	"github.com/shayc/otto/internal/memory"
)

var (
	initForce      bool
	initWithConfig bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize an otto project",
	Long: `Initialize a directory for use with otto.

This command sets up everything needed to run the daemon:
  - Creates the .otto data directory structure
  - Creates and migrates the database
  - Checks backend availability
  - Optionally creates a project configuration file

The directory argument is optional and defaults to the current directory.

Examples:
  otto init                 # Initialize current directory
  otto init ./myproject     # Initialize specific directory
  otto init --force         # Reinitialize even if already set up
  otto init --with-config   # Also create a .otto.yaml template`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initWithConfig, "with-config", false, "Create a .otto.yaml template")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing otto in %s...\n\n", absPath)

	ottoDir := filepath.Join(absPath, ".otto")
	if _, err := os.Stat(ottoDir); err == nil && !initForce {
		fmt.Printf("Directory already initialized. Use --force to reinitialize.\n")
		return nil
	}

	// Data directory layout: logs for the debug logger, signals and
	// capture for external hooks, backups for snapshots.
	for _, sub := range []string{"logs", "signals", "capture", "backups"} {
		if err := os.MkdirAll(filepath.Join(ottoDir, sub), 0755); err != nil {
			return fmt.Errorf("creating .otto/%s directory: %w", sub, err)
		}
	}
	printStatus("✓", "Created .otto directory structure", color.FgGreen)

	db, err := memory.Open(memory.ProjectDBPath(absPath))
	if err != nil {
		printStatus("✗", "Database creation failed", color.FgRed)
		return err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		printStatus("✗", "Database migration failed", color.FgRed)
		return err
	}
	db.Close()
	printStatus("✓", "Created and migrated database", color.FgGreen)

	cfg, err := config.Load()
	if err != nil {
		printStatus("✗", fmt.Sprintf("Configuration invalid: %v", err), color.FgRed)
		return err
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" && cfg.Anthropic.APIKey == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (remote backend disabled until you set it)", color.FgYellow)
	} else {
		printStatus("✓", "Anthropic API key is set", color.FgGreen)
	}

	if localBackendUp(cfg.Backends.Local.URL) {
		printStatus("✓", fmt.Sprintf("Local backend reachable at %s", cfg.Backends.Local.URL), color.FgGreen)
	} else {
		printStatus("⚠", fmt.Sprintf("Local backend not reachable at %s (install Ollama or set backends.local.url)", cfg.Backends.Local.URL), color.FgYellow)
	}

	if _, err := os.Stat(filepath.Join(absPath, ".git")); err == nil {
		if err := updateGitignore(absPath); err != nil {
			return fmt.Errorf("updating .gitignore: %w", err)
		}
		printStatus("✓", "Updated .gitignore with otto entries", color.FgGreen)
	}

	if initWithConfig {
		path, err := writeProjectConfig(absPath)
		if err != nil {
			return err
		}
		if path != "" {
			printStatus("✓", "Created .otto.yaml template", color.FgGreen)
		} else {
			printStatus("✓", ".otto.yaml already exists", color.FgGreen)
		}
	}

	fmt.Printf("\n%s otto initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	if apiKey == "" && cfg.Anthropic.APIKey == "" {
		fmt.Println("  1. Set your API key:")
		fmt.Println("     export ANTHROPIC_API_KEY=your-key-here")
		fmt.Println()
	}
	fmt.Println("  2. Start the daemon:")
	fmt.Println("     otto run")
	fmt.Println()
	fmt.Println("  3. Watch it work:")
	fmt.Println("     otto status --watch")

	return nil
}

// localBackendUp probes the local inference endpoint.
func localBackendUp(url string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// updateGitignore adds otto entries to .gitignore if not present
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	ottoEntries := []string{
		".otto/otto.db*",
		".otto/logs/",
		".otto/backups/",
		"otto",
	}

	needsUpdate := false
	for _, entry := range ottoEntries {
		if !strings.Contains(existingContent, entry) {
			needsUpdate = true
			break
		}
	}

	if !needsUpdate {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)

	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}

	newContent.WriteString("\n# Otto\n")
	for _, entry := range ottoEntries {
		if !strings.Contains(existingContent, entry) {
			newContent.WriteString(entry + "\n")
		}
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
