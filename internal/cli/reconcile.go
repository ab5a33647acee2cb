package cli

import (
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-career-coach/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-career-coach/internal/usecase"
)

func newReconcileCmd(e *env) *cobra.Command {
	var (
		userID string
		batch  int
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair stored levels that disagree with stored XP",
		Long: `Recompute every user's level from their XP and fix rows where they diverge.
With --user only that user is reconciled.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, closeFn, err := e.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			svc := usecase.NewProgressService(st.progress, redpanda.Noop{})
			if userID != "" {
				p, err := svc.Reconcile(cmd.Context(), userID)
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "%s: xp=%d level=%d (%s)\n", p.UserID, p.XP, p.Level, p.LevelName)
				return nil
			}
			fixed, err := svc.ReconcileAll(cmd.Context(), batch)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "reconciled %d user(s)\n", fixed)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "reconcile a single user")
	cmd.Flags().IntVar(&batch, "batch", 500, "page size for the full pass")
	return cmd
}
