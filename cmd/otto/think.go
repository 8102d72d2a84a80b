package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shayc/otto/internal/backend"
	"github.com/shayc/otto/internal/config"
	"github.com/shayc/otto/internal/memory"
	"github.com/shayc/otto/internal/router"
	"github.com/shayc/otto/pkg/models"
)

var (
	thinkProfile    string
	thinkComplexity float64
	thinkQueue      bool
)

var thinkCmd = &cobra.Command{
	Use:   "think <prompt>",
	Short: "Route one reasoning request",
	Long: `Submit a single prompt through the reasoning router.

The request is served under the reasoning policy of the active profile:
the latest heartbeat's profile when the daemon has run here, PERFORMANCE
otherwise. Use --profile to force a different policy.

With --queue, the prompt is not answered; it is stored as a captured
prompt for the coder agent to pick up on its next pass.`,
	Args: cobra.ExactArgs(1),
	RunE: runThink,
}

func init() {
	thinkCmd.Flags().StringVar(&thinkProfile, "profile", "", "Force a profile's reasoning policy")
	thinkCmd.Flags().Float64Var(&thinkComplexity, "complexity", -1, "Declare the complexity score (0 to 1) instead of scoring the prompt")
	thinkCmd.Flags().BoolVar(&thinkQueue, "queue", false, "Queue the prompt for the coder agent instead of answering")
}

func runThink(cmd *cobra.Command, args []string) error {
	prompt := args[0]

	db, err := openDB()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		db.Close()
		return fmt.Errorf("load config: %w", err)
	}

	profile, err := thinkProfileFor(db, cfg)
	if err != nil {
		db.Close()
		return err
	}
	pc := cfg.Profiles.Get(profile)

	store := memory.NewStore(db, pc.BudgetBytes())
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if thinkQueue {
		rec := &models.MemoryRecord{
			Kind:    models.KindPromptCapture,
			Payload: prompt,
		}
		if err := store.Append(ctx, rec); err != nil {
			return fmt.Errorf("queue prompt: %w", err)
		}
		fmt.Printf("Queued for the coder agent (record %s)\n", rec.ID)
		return nil
	}

	var remoteB, localB backend.Backend
	remote, err := backend.NewRemote(backend.RemoteConfig{
		Model:      cfg.Backends.Remote.Model,
		MaxTokens:  cfg.Backends.Remote.MaxTokens,
		APIKey:     cfg.Anthropic.APIKey,
		UseBedrock: cfg.Backends.Remote.UseBedrock,
		AWSRegion:  cfg.Backends.Remote.AWSRegion,
		AWSProfile: cfg.Backends.Remote.AWSProfile,
	})
	if err == nil {
		remoteB = remote
	}
	local, err := backend.NewLocal(backend.LocalConfig{
		URL:     cfg.Backends.Local.URL,
		Model:   cfg.Backends.Local.Model,
		Timeout: cfg.Backends.Local.Timeout,
	})
	if err == nil {
		localB = local
	}

	rtr, err := router.NewRouter(router.Config{
		Store:          store,
		Policy:         router.StaticPolicy{Policy: pc.ReasoningPolicy(), TTL: pc.CacheTTL},
		Remote:         remoteB,
		Local:          localB,
		MaxAttempts:    cfg.Router.MaxAttempts,
		BackoffBase:    cfg.Router.BackoffBase,
		BackoffCap:     cfg.Router.BackoffCap,
		ThinkTimeout:   cfg.Router.ThinkTimeout,
		ContextRecords: cfg.Router.ContextRecords,
	})
	if err != nil {
		return fmt.Errorf("wire router: %w", err)
	}

	req := models.ThinkRequest{Prompt: prompt}
	if thinkComplexity >= 0 {
		req.DeclaredComplexity = &thinkComplexity
	}

	res, err := rtr.Think(ctx, req)
	if err != nil {
		if errors.Is(err, router.ErrAllBackendsUnavailable) {
			return fmt.Errorf("no backend could serve the request under %s policy: %w", pc.ReasoningPolicy(), err)
		}
		return err
	}

	fmt.Println(res.Answer)
	fmt.Println()

	served := string(res.Backend)
	if res.Cached {
		served += " (cached)"
	}
	fmt.Printf("backend=%s latency=%s complexity=%.2f\n",
		served, res.Latency.Round(time.Millisecond), res.Complexity)
	return nil
}

// thinkProfileFor picks the profile whose policy serves the request.
func thinkProfileFor(db *memory.DB, cfg *config.Config) (models.Profile, error) {
	if thinkProfile != "" {
		p := models.Profile(strings.ToUpper(thinkProfile))
		if !p.Valid() {
			return "", fmt.Errorf("unknown profile %q", thinkProfile)
		}
		return p, nil
	}

	snap, err := db.LatestHeartbeat()
	if errors.Is(err, memory.ErrNotFound) {
		return models.ProfilePerformance, nil
	}
	if err != nil {
		return "", fmt.Errorf("latest heartbeat: %w", err)
	}
	return snap.Profile, nil
}
