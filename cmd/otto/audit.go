package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shayc/otto/internal/memory"
	"github.com/shayc/otto/pkg/models"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent routed consultations",
	Long: `Show the audit trail of routed reasoning calls, newest first.

Each line shows which backend served the call, how long it took, and
the complexity score the routing decision used.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "Maximum consultations to show")
}

func runAudit(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.QueryRecords(memory.QueryFilter{
		Kind:  models.KindConsultation,
		Limit: auditLimit,
	})
	if err != nil {
		return fmt.Errorf("query consultations: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No consultations recorded yet.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s  %-12s %6dms  score %.2f  %s ago  %s\n",
			shortID(rec.ID), rec.Backend, rec.LatencyMS, rec.Complexity,
			formatDuration(time.Since(rec.CreatedAt)), snippet(rec.Payload, 48))
	}
	return nil
}
