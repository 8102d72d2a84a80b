package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shayc/otto/internal/daemon"
)

var (
	runConfigPath string
	runDataDir    string
	runProfile    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the otto daemon",
	Long: `Run the otto daemon in the foreground.

The daemon samples the power supply, reconciles the agent roster to the
active profile, routes agent reasoning to the cheapest capable backend,
and writes heartbeat snapshots for the status command.

Stop it with Ctrl-C, or from another terminal:
  touch .otto/signals/stop     # graceful shutdown
  touch .otto/signals/pause    # park all agents until removed
  echo eco > .otto/signals/profile   # override the profile`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Config file path (overrides discovery)")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Data directory (default .otto)")
	runCmd.Flags().StringVar(&runProfile, "profile", "", "Pin the profile for the whole run (PERFORMANCE, BALANCED, ECO, CRITICAL)")
}

func runRun(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(daemon.Options{
		ConfigPath: runConfigPath,
		DataDir:    runDataDir,
		Profile:    runProfile,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	return d.Run(ctx)
}
