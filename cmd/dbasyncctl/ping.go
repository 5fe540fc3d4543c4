package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Round-trip a ping through one worker",
		RunE:  runPing,
	}
}

func runPing(cmd *cobra.Command, _ []string) error {
	cc := mustContext(cmd)

	v, err := cc.schema.Ping().Await(cmd.Context())
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	fmt.Println(v)

	return nil
}
