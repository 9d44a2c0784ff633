package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zfogg/showcase/backend/internal/cache"
	"github.com/zfogg/showcase/backend/internal/fanout"
	"github.com/zfogg/showcase/backend/internal/logger"
	"go.uber.org/zap"
)

var (
	watchPostID  string
	watchChannel string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live engagement updates relayed through Redis",
	Long: `Subscribe to the Redis channel the server relays accepted events to and
print each update until interrupted. Requires REDIS_HOST.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.RedisHost == "" {
			return fmt.Errorf("REDIS_HOST is not set")
		}

		client, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer client.Close()

		payloads, err := client.Subscribe(cmd.Context(), watchChannel)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if output == "text" {
			fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", watchChannel)
		}

		for payload := range payloads {
			u, err := fanout.DecodeUpdate(payload)
			if err != nil {
				logger.Log.Warn("Skipping malformed update", zap.Error(err))
				continue
			}
			if watchPostID != "" && u.PostID != watchPostID {
				continue
			}

			if output == "json" {
				if err := json.NewEncoder(out).Encode(u); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintf(out, "%s  %-11s post=%s by=%s  views=%d shares=%d endorsements=%d\n",
				u.At.Format("15:04:05"), u.Kind, truncateString(u.PostID, 12), truncateString(u.ActorID, 12),
				u.Engagement.ViewCount, u.Engagement.ShareCount, u.Engagement.EndorsementCount)
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchPostID, "post", "", "Only show updates for this post")
	watchCmd.Flags().StringVar(&watchChannel, "channel", fanout.DefaultChannel, "Redis pub/sub channel")
}
