package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zfogg/showcase/backend/internal/container"
)

var engagementWindowHours int

var engagementCmd = &cobra.Command{
	Use:   "engagement <post-id>",
	Short: "Show a post's engagement counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID := args[0]
		if engagementWindowHours < 1 {
			return fmt.Errorf("--window-hours must be positive")
		}

		return withEngine(func(app *container.Container) error {
			ctx := cmd.Context()
			svc := app.Service()

			counts, err := svc.GetPostEngagement(ctx, postID)
			if err != nil {
				return fmt.Errorf("failed to load engagement: %w", err)
			}
			unique, err := svc.GetUniqueViewers(ctx, postID)
			if err != nil {
				return fmt.Errorf("failed to count unique viewers: %w", err)
			}
			recent, err := svc.GetRecentViews(ctx, postID, engagementWindowHours)
			if err != nil {
				return fmt.Errorf("failed to count recent views: %w", err)
			}
			endorsements, err := svc.Endorsements(ctx, postID)
			if err != nil {
				return fmt.Errorf("failed to list endorsements: %w", err)
			}

			out := cmd.OutOrStdout()
			if output == "json" {
				counts.PostID = postID
				return json.NewEncoder(out).Encode(map[string]any{
					"engagement":       counts,
					"engagement_score": counts.Score(),
					"unique_viewers":   unique,
					"recent_views":     recent,
					"window_hours":     engagementWindowHours,
					"endorsements":     endorsements,
				})
			}

			fmt.Fprintf(out, "\nPost %s\n", postID)
			fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Fprintf(out, "Views:          %d (%d unique, %d in last %dh)\n", counts.ViewCount, unique, recent, engagementWindowHours)
			fmt.Fprintf(out, "Shares:         %d\n", counts.ShareCount)
			fmt.Fprintf(out, "Endorsements:   %d\n", counts.EndorsementCount)
			fmt.Fprintf(out, "Score:          %d\n", counts.Score())

			for _, e := range endorsements {
				fmt.Fprintf(out, "\n  %s  %s\n  \"%s\"\n", e.OccurredAt.Format("2006-01-02 15:04"), truncateString(e.ActorID, 12), e.Message)
			}
			return nil
		})
	},
}

func init() {
	engagementCmd.Flags().IntVar(&engagementWindowHours, "window-hours", 24, "Trailing window for recent views")
}
