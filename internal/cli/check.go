package cli

import (
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/pavcore/internal/pipeline"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-complete num_alts [k]",
		Short: "Check that the explored history tree is complete up to symmetry",
		Long: `Walk the history tree from the root, following every successful history
to its canonical continuations, and report the first continuation that is
missing from the artifact or that is unsuccessful without a Farkas
certificate.

Without k, every committee size from check.min_k (default 8) to num_alts-2
is checked in order. Missing artifacts are skipped.

Examples:
  pavcore check-complete 12 9
  pavcore check-complete 12 --json
  pavcore check-complete 12 --watch`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd, pipeline.TaskCheck, args, cfg.Check.MinK, pipeline.Options{})
		},
	}
}
