package cli

import (
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/pavcore/internal/pipeline"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats num_alts [k]",
		Short: "Summarize result artifacts",
		Long: `Count the histories in each artifact: how many were explored, how many
had a successful LP, how many carry a certificate, and how many sit at
each depth. The artifact is not checked.

Examples:
  pavcore stats 12 9
  pavcore stats 12 --json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd, pipeline.TaskStats, args, cfg.Check.MinK, pipeline.Options{KeepGoing: true})
		},
	}
}
