package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"
)

var (
	flagHealthWait    bool
	flagHealthTimeout time.Duration
)

func newHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe every worker's connection",
		RunE:  runHealth,
	}

	cmd.Flags().BoolVar(&flagHealthWait, "wait", false, "retry with backoff until healthy or --timeout elapses")
	cmd.Flags().DurationVar(&flagHealthTimeout, "timeout", 30*time.Second, "maximum time to wait with --wait")

	return cmd
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cc := mustContext(cmd)

	if !flagHealthWait {
		if err := cc.schema.HealthCheck(cmd.Context()); err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		fmt.Println("healthy")

		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), flagHealthTimeout)
	defer cancel()

	backoff, err := retry.NewExponential(200 * time.Millisecond)
	if err != nil {
		return fmt.Errorf("building backoff: %w", err)
	}

	backoff = retry.WithCappedDuration(5*time.Second, backoff)
	backoff = retry.WithJitterPercent(15, backoff)

	attempt := 0

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		if healthErr := cc.schema.HealthCheck(ctx); healthErr != nil {
			cc.logger.Debug("health check attempt failed", "attempt", attempt, "error", healthErr)

			return retry.RetryableError(healthErr)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("health check never succeeded after %d attempts: %w", attempt, err)
	}

	fmt.Printf("healthy after %d attempt(s)\n", attempt)

	return nil
}
