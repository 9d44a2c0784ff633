package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zfogg/showcase/backend/internal/container"
	"github.com/zfogg/showcase/backend/internal/retention"
)

var sweepHorizon time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge view and share events older than the retention horizon",
	Long: `Run one retention sweep. Endorsements are never purged.
Cumulative totals and post counters are unaffected; unique-viewer and
recent-view scans only see retained events.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		horizon := cfg.Engagement.RetentionHorizon
		if sweepHorizon > 0 {
			horizon = sweepHorizon
		}

		// Shorter horizons would drop events the cooldown and rate limit still read
		probe := cfg.Engagement
		probe.RetentionHorizon = horizon
		if err := probe.Validate(); err != nil {
			return err
		}

		return withEngine(func(app *container.Container) error {
			sweeper := retention.NewSweeper(app.Ledger(), horizon, cfg.Engagement.RetentionInterval, nil)
			purged, err := sweeper.SweepOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}

			if output == "json" {
				fmt.Fprintf(cmd.OutOrStdout(), "{\"purged\":%d,\"horizon\":%q}\n", purged, horizon)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Purged %d view/share events older than %s\n", purged, horizon)
			return nil
		})
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepHorizon, "horizon", 0, "Override RETENTION_HORIZON (e.g. 720h)")
}
