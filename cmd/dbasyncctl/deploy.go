package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagDeployDir string

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Run goose migrations from a directory against one worker's connection",
		RunE:  runDeploy,
	}

	cmd.Flags().StringVar(&flagDeployDir, "dir", "", "migrations directory (required)")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	cc := mustContext(cmd)

	ok, err := cc.schema.Deploy(flagDeployDir, nil).Await(cmd.Context())
	if err != nil {
		return fmt.Errorf("deploy: %w", err)
	}

	if !ok {
		return fmt.Errorf("deploy: migrations reported no changes applied")
	}

	fmt.Println("deployed")

	return nil
}
