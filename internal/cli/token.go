package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	httpserver "github.com/fairyhunter13/ai-career-coach/internal/adapter/httpserver"
)

func newTokenCmd(e *env) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user (development and smoke tests)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if e.cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			if e.cfg.IsProd() {
				return errors.New("refusing to mint tokens in prod")
			}
			tok, err := httpserver.IssueToken(e.cfg.JWTSecret, e.cfg.JWTIssuer, userID, ttl)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "subject (user id)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
