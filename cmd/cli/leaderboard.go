package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zfogg/showcase/backend/internal/container"
	"github.com/zfogg/showcase/backend/internal/leaderboard"
	"github.com/zfogg/showcase/backend/internal/models"
)

var (
	leaderboardLimit  int
	leaderboardPeriod string
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the engagement leaderboard",
	Long: `Rank users by engagement score (views + 2×shares + 3×endorsements).
Period "all" reads cumulative totals; day, week and month scan the ledger.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := leaderboard.ParsePeriod(leaderboardPeriod)
		if err != nil {
			return err
		}
		if leaderboardLimit < 1 || leaderboardLimit > leaderboard.MaxLimit {
			return fmt.Errorf("--limit must be between 1 and %d", leaderboard.MaxLimit)
		}

		return withEngine(func(app *container.Container) error {
			entries, err := app.Ranker().Rank(cmd.Context(), leaderboardLimit, period)
			if err != nil {
				return fmt.Errorf("failed to compute leaderboard: %w", err)
			}
			return printLeaderboard(cmd.OutOrStdout(), period, entries)
		})
	},
}

func init() {
	leaderboardCmd.Flags().IntVar(&leaderboardLimit, "limit", leaderboard.DefaultLimit, "Number of users to show")
	leaderboardCmd.Flags().StringVar(&leaderboardPeriod, "period", string(leaderboard.PeriodAll), "all, day, week or month")
}

func printLeaderboard(out io.Writer, period leaderboard.Period, entries []models.LeaderboardEntry) error {
	if output == "json" {
		if entries == nil {
			entries = []models.LeaderboardEntry{}
		}
		return json.NewEncoder(out).Encode(map[string]any{"period": period, "entries": entries})
	}

	if len(entries) == 0 {
		fmt.Fprintf(out, "No engagement recorded for period %s\n", period)
		return nil
	}

	fmt.Fprintf(out, "\nLeaderboard (%s)\n", period)
	fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tUSER\tSCORE\tVIEWS\tSHARES\tENDORSEMENTS")
	for _, e := range entries {
		name := e.DisplayName
		if name == "" {
			name = truncateString(e.UserID, 12)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\n", e.Rank, name, e.EngagementScore, e.Views, e.Shares, e.Endorsements)
	}
	return w.Flush()
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
