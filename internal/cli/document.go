package cli

import (
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

func newDocumentCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Manage résumé owner records",
	}
	cmd.AddCommand(newDocumentCreateCmd(e), newDocumentShowCmd(e))
	return cmd
}

func newDocumentCreateCmd(e *env) *cobra.Command {
	var userID, title string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a document for a user and print its id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, closeFn, err := e.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			d, err := st.documents.Create(cmd.Context(), domain.Document{UserID: userID, Title: title})
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", d.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner user id")
	cmd.Flags().StringVar(&title, "title", "", "document title")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newDocumentShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a document's owner and title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := e.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			d, err := st.documents.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "id=%s user=%s title=%q created=%s\n", d.ID, d.UserID, d.Title, d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
}
