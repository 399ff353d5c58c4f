package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/pavcore/internal/ballot"
	"github.com/Dicklesworthstone/pavcore/internal/pipeline"
	"github.com/Dicklesworthstone/pavcore/internal/report"
	"github.com/Dicklesworthstone/pavcore/internal/watcher"
)

// parseConfigArgs reads "num_alts [k]". k is 0 when omitted.
func parseConfigArgs(args []string) (numAlts, k int, err error) {
	numAlts, err = strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("num_alts: %q is not an integer", args[0])
	}
	if err := ballot.ValidateNumAlts(numAlts); err != nil {
		return 0, 0, err
	}
	if len(args) < 2 {
		return numAlts, 0, nil
	}
	k, err = strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("k: %q is not an integer", args[1])
	}
	if k < 1 || k >= numAlts {
		return 0, 0, fmt.Errorf("k must be in [1, %d], got %d", numAlts-1, k)
	}
	return numAlts, k, nil
}

// runTask resolves the stages for args and runs task over them, once or
// under --watch.
func runTask(cmd *cobra.Command, task pipeline.Task, args []string, minK int, opts pipeline.Options) error {
	numAlts, k, err := parseConfigArgs(args)
	if err != nil {
		return err
	}
	stages := pipeline.Range(numAlts, k, minK)
	if len(stages) == 0 {
		return fmt.Errorf("no committee sizes between %d and %d for num_alts=%d", minK, numAlts-2, numAlts)
	}

	p := pipeline.Pipeline{Task: task, ResultsDir: cfg.ResultsDir, Stages: stages}
	opts.Logger = logger
	if watchMode {
		return watchLoop(cmd.Context(), cmd, p, opts)
	}
	return runOnce(cmd.Context(), cmd, p, opts)
}

// runOnce executes p, printing each outcome as it completes, and writes the
// report.
func runOnce(ctx context.Context, cmd *cobra.Command, p pipeline.Pipeline, opts pipeline.Options) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	rep := report.New(cmd.CommandPath(), p.ResultsDir)

	var bar *progressBar
	if !IsJSONOutput() && stderrIsTerminal() {
		opts.Progress = func(s pipeline.Stage) func(done, total int) {
			bar = newProgressBar(errOut, s.String())
			return bar.Update
		}
	}
	opts.OnOutcome = func(o pipeline.Outcome) {
		if bar != nil {
			bar.Clear()
			bar = nil
		}
		if err := rep.Add(o); err != nil {
			logger.Warn("artifact digest failed", "path", o.Path, "error", err)
		}
		if !IsJSONOutput() {
			printOutcome(out, o)
		}
	}

	if !IsJSONOutput() {
		printHeader(out, fmt.Sprintf("%s  %s", p.Task, p.ResultsDir))
	}
	_, runErr := pipeline.Execute(ctx, p, opts)
	rep.Finish()

	if reportPath != "" {
		if err := report.Save(reportPath, rep); err != nil {
			return err
		}
	}
	if IsJSONOutput() {
		if err := printJSON(out, rep); err != nil {
			return err
		}
	} else {
		printSummary(out, rep)
	}
	return runErr
}

// watchLoop runs p once, then again for every configuration in p whose
// artifact changes, until ctx is done. Failing stages are reported but do
// not end the loop.
func watchLoop(ctx context.Context, cmd *cobra.Command, p pipeline.Pipeline, opts pipeline.Options) error {
	if err := runOnce(ctx, cmd, p, opts); err != nil && !errors.Is(err, pipeline.ErrFailed) {
		return err
	}

	stop := make(chan struct{})
	defer close(stop)
	changes := make(chan []watcher.Change, 1)
	w, err := watcher.New(p.ResultsDir, func(batch []watcher.Change) {
		select {
		case changes <- batch:
		case <-stop:
		}
	},
		watcher.WithDebounceDuration(cfg.Watch.Debounce.Duration),
		watcher.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer w.Close()
	logger.Info("watching for artifact changes", "dir", p.ResultsDir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-changes:
			stages := affectedStages(p.Stages, batch)
			if len(stages) == 0 {
				continue
			}
			rerun := p
			rerun.Stages = stages
			err := runOnce(ctx, cmd, rerun, opts)
			if ctx.Err() != nil {
				return nil
			}
			if err != nil && !errors.Is(err, pipeline.ErrFailed) {
				return err
			}
		}
	}
}

// affectedStages returns the stages named by batch, in stage order.
func affectedStages(stages []pipeline.Stage, batch []watcher.Change) []pipeline.Stage {
	touched := make(map[pipeline.Stage]bool, len(batch))
	for _, c := range batch {
		touched[pipeline.Stage{NumAlts: c.NumAlts, K: c.K}] = true
	}
	var out []pipeline.Stage
	for _, s := range stages {
		if touched[s] {
			out = append(out, s)
		}
	}
	return out
}
