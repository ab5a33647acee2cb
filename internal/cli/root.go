/*
Package cli implements coachctl, the operator CLI for the career coach.

Commands share the server's environment configuration (DB_URL, JWT_SECRET, ...).
*/
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-career-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-career-coach/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-career-coach/internal/config"
)

// env carries what subcommands need; tests swap connect for an in-memory store.
type env struct {
	cfg     config.Config
	connect func(ctx context.Context) (store, func(), error)
}

// NewRootCmd builds coachctl with all subcommands.
func NewRootCmd() *cobra.Command { return newRootCmd(&env{}) }

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "coachctl",
		Short:         "Operator tooling for the AI career coach",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e.cfg = cfg
			slog.SetDefault(observability.SetupLogger(cfg))
			if e.connect == nil {
				e.connect = e.connectPostgres
			}
			return nil
		},
	}
	root.AddCommand(
		newMigrateCmd(e),
		newReconcileCmd(e),
		newLevelsCmd(),
		newTokenCmd(e),
		newDocumentCmd(e),
	)
	return root
}

func (e *env) connectPostgres(ctx context.Context) (store, func(), error) {
	pool, err := postgres.NewPool(ctx, e.cfg.DBURL)
	if err != nil {
		return store{}, nil, fmt.Errorf("db connect: %w", err)
	}
	return store{
		pool:      pool,
		progress:  postgres.NewProgressRepo(pool),
		documents: postgres.NewDocumentRepo(pool),
	}, pool.Close, nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
