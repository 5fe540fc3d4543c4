package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print dispatcher dispatch/success/failure counters",
		RunE:  runStats,
	}
}

func runStats(cmd *cobra.Command, _ []string) error {
	cc := mustContext(cmd)

	stats := cc.schema.Stats()

	if flagJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(stats)
	}

	fmt.Printf("dispatched=%d succeeded=%d failed=%d\n", stats.Dispatched, stats.Succeeded, stats.Failed)

	return nil
}
