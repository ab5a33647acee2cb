package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

func newLevelsCmd() *cobra.Command {
	var upTo int
	var xp int
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Print the level curve, or where an XP total lands on it",
		// The curve is static; skip config and database.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if cmd.Flags().Changed("xp") {
				if xp < 0 {
					return fmt.Errorf("%w: xp must not be negative", domain.ErrInvalidArgument)
				}
				info := domain.LevelFromXP(xp)
				printf(out, "xp=%d level=%d (%s) %d/%d into level, %d%%\n",
					xp, info.Level, domain.LevelName(info.Level), info.XPIntoLevel, info.XPForNextLevel, info.ProgressPercent)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			printf(tw, "LEVEL\tNAME\tTOTAL XP\tNEXT LEVEL COST\n")
			for lvl := 1; lvl <= upTo; lvl++ {
				printf(tw, "%d\t%s\t%d\t%d\n", lvl, domain.LevelName(lvl), domain.XPThreshold(lvl), domain.XPThreshold(lvl+1)-domain.XPThreshold(lvl))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&upTo, "max", 12, "highest level to print")
	cmd.Flags().IntVar(&xp, "xp", 0, "show the level for this XP total")
	return cmd
}
