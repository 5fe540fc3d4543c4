package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/dbasync"
)

var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
)

// cliContextKey is the context key the opened Schema is stashed under.
type cliContextKey struct{}

type cliContext struct {
	schema *dbasync.Schema
	logger *slog.Logger
}

func schemaFrom(ctx context.Context) *cliContext {
	cc, _ := ctx.Value(cliContextKey{}).(*cliContext)

	return cc
}

// skipSchemaAnnotation marks commands that don't need a Schema opened —
// currently none, kept for symmetry with config-skipping commands that
// may be added later.
const skipSchemaAnnotation = "skipSchema"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dbasyncctl",
		Short:         "Diagnose and drive a dbasync-backed database",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipSchemaAnnotation] == "true" {
				return nil
			}

			return openSchema(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			cc := schemaFrom(cmd.Context())
			if cc == nil || cc.schema == nil {
				return nil
			}

			return cc.schema.Disconnect()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")

	cmd.AddCommand(newPingCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDeployCmd())
	cmd.AddCommand(newQueryCmd())

	return cmd
}

func openSchema(cmd *cobra.Command) error {
	logger := buildLogger()

	cfg, err := dbasync.LoadConfig(flagConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg.Logger = logger

	schema, err := dbasync.Open(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("opening schema: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, &cliContext{schema: schema, logger: logger}))

	return nil
}

func buildLogger() *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func mustContext(cmd *cobra.Command) *cliContext {
	cc := schemaFrom(cmd.Context())
	if cc == nil {
		panic("BUG: cliContext not found — PersistentPreRunE should have populated it")
	}

	return cc
}
