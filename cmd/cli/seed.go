package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/zfogg/showcase/backend/internal/config"
	"github.com/zfogg/showcase/backend/internal/container"
	"github.com/zfogg/showcase/backend/internal/engagement"
	"github.com/zfogg/showcase/backend/internal/models"
	"github.com/zfogg/showcase/backend/internal/seed"
)

var seedOpts = seed.DefaultOptions()

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo workers, posts and engagement",
	Long: `Create fake workers and posts, then drive views, shares and endorsements
through the engagement engine so ledger, counters and leaderboard agree.
Rejections (cooldowns, duplicate endorsements, self-endorsements) are normal
and reported. With STORE_DRIVER=memory nothing is kept: the run is a dry run
that only reports what the engine accepted and rejected.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.IsProduction() {
			return fmt.Errorf("refusing to seed a production database")
		}

		return withEngine(func(app *container.Container) error {
			var catalog seed.Catalog
			if cfg.StoreDriver == config.DriverMemory {
				catalog = seed.NewDirectoryCatalog(app.StaticDirectory())
			} else {
				catalog = seed.NewGormCatalog(app.DB())
			}

			seeder := seed.NewSeeder(catalog, app.Service())
			summary, err := seeder.Run(cmd.Context(), seedOpts)
			if err != nil {
				return err
			}
			return printSeedSummary(cmd, summary)
		})
	},
}

func init() {
	f := seedCmd.Flags()
	f.IntVar(&seedOpts.Users, "users", seedOpts.Users, "Workers to create")
	f.IntVar(&seedOpts.PostsPerUser, "posts-per-user", seedOpts.PostsPerUser, "Posts per worker")
	f.IntVar(&seedOpts.Views, "views", seedOpts.Views, "View attempts")
	f.IntVar(&seedOpts.Shares, "shares", seedOpts.Shares, "Share attempts")
	f.IntVar(&seedOpts.Endorsements, "endorsements", seedOpts.Endorsements, "Endorsement attempts")
	f.Uint64Var(&seedOpts.Seed, "seed", 0, "Random seed for reproducible data (0 = random)")
}

func printSeedSummary(cmd *cobra.Command, summary *seed.Summary) error {
	out := cmd.OutOrStdout()
	if output == "json" {
		return json.NewEncoder(out).Encode(summary)
	}

	if cfg.StoreDriver == config.DriverMemory {
		fmt.Fprintln(out, "Dry run (memory driver): nothing was persisted")
	}
	fmt.Fprintf(out, "✓ Seeded %d workers and %d posts\n", summary.Users, summary.Posts)
	for _, kind := range []models.EventKind{models.KindView, models.KindShare, models.KindEndorsement} {
		fmt.Fprintf(out, "  accepted %-18s %d\n", kind, summary.Accepted[kind])
	}

	reasons := make([]engagement.ReasonCode, 0, len(summary.Rejected))
	for reason := range summary.Rejected {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	for _, reason := range reasons {
		fmt.Fprintf(out, "  rejected %-18s %d\n", reason, summary.Rejected[reason])
	}
	return nil
}
