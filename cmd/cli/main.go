package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zfogg/showcase/backend/internal/config"
	"github.com/zfogg/showcase/backend/internal/container"
	"github.com/zfogg/showcase/backend/internal/logger"
)

var (
	output string = "text" // "text" or "json"
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "showcase",
	Short: "Showcase CLI - Inspect and operate the engagement engine",
	Long: `Showcase CLI talks to the engagement store configured in the environment
(STORE_DRIVER, DATABASE_URL, REDIS_HOST, ...). Use it to read leaderboards and
post engagement, run the retention sweep, seed demo data and mint dev tokens.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if output != "text" && output != "json" {
			return fmt.Errorf("--output must be text or json, got %q", output)
		}

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		return logger.InitializeWithConsole("warn", cfg.LogFile, os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(engagementCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(watchCmd)
}

// withEngine builds the engine from the loaded config, runs fn and tears it down
func withEngine(fn func(app *container.Container) error) error {
	app, err := container.Build(cfg)
	if err != nil {
		return fmt.Errorf("failed to open engagement store: %w", err)
	}
	defer app.Cleanup(context.Background())

	return fn(app)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
