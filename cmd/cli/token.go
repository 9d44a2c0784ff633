package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zfogg/showcase/backend/internal/identity"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a bearer token for local testing",
	Long: `Sign a session token for user-id with JWT_SECRET, the same way the app's
auth service does. Use it as "Authorization: Bearer <token>" or ?token= on /ws.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		if cfg.IsProduction() {
			return fmt.Errorf("refusing to mint tokens with the production secret")
		}

		token, err := identity.IssueToken([]byte(cfg.JWTSecret), args[0], tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}

		if output == "json" {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
				"user_id":    args[0],
				"token":      token,
				"expires_at": time.Now().Add(tokenTTL).UTC(),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}
