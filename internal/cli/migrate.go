package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-career-coach/internal/adapter/repo/postgres"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version]",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := e.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			if st.pool == nil {
				return errors.New("migrate needs a postgres connection")
			}
			if err := postgres.Migrate(cmd.Context(), st.pool, args[0]); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "migrate %s: ok\n", args[0])
			return nil
		},
	}
}
