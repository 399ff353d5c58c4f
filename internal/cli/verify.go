package cli

import (
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/pavcore/internal/pipeline"
)

var (
	verifyWorkers   string
	verifyStrict    bool
	verifyKeepGoing bool
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-certificates num_alts [k]",
		Short: "Verify every Farkas certificate in exact rational arithmetic",
		Long: `Check that each unsuccessful history's Farkas multipliers prove the
history's linear program infeasible: the weighted sum of the per-ballot
constraints is nonnegative for every ballot while the objective bound is
at most -1. An unsuccessful history with no certificate fails.

Certificates are checked in parallel; the first unsound certificate stops
the run and is reported with the violated inequality.

Without k, every committee size from verify.min_k (default 9) to
num_alts-2 is verified in order.

Examples:
  pavcore verify-certificates 12 9
  pavcore verify-certificates 12 --workers auto
  pavcore verify-certificates 12 --strict --keep-going`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runVerify,
	}

	cmd.Flags().StringVar(&verifyWorkers, "workers", "", `parallel verifiers: a count or "auto" (default from config)`)
	cmd.Flags().BoolVar(&verifyStrict, "strict", false, "also reject negative beta and gamma multipliers")
	cmd.Flags().BoolVar(&verifyKeepGoing, "keep-going", false, "continue with later committee sizes after a failure")

	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	vc := cfg.Verify
	if verifyWorkers != "" {
		vc.Workers = verifyWorkers
	}
	workers, err := vc.WorkerCount()
	if err != nil {
		return err
	}
	return runTask(cmd, pipeline.TaskVerify, args, vc.MinK, pipeline.Options{
		Workers:            workers,
		RequireNonNegative: verifyStrict || vc.RequireNonNegative,
		KeepGoing:          verifyKeepGoing,
	})
}
