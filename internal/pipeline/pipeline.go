// Package pipeline runs one task over a range of (num_alts, k)
// configurations in sequence, producing a pass, skip or fail outcome for
// each.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Dicklesworthstone/pavcore/internal/completeness"
	"github.com/Dicklesworthstone/pavcore/internal/farkas"
	"github.com/Dicklesworthstone/pavcore/internal/results"
	"github.com/Dicklesworthstone/pavcore/internal/store"
)

// ErrFailed is wrapped by Execute when at least one stage failed.
var ErrFailed = errors.New("verification failed")

// Task is the check applied at every stage.
type Task string

const (
	TaskCheck  Task = "check-complete"
	TaskVerify Task = "verify-certificates"
	TaskStats  Task = "stats"
)

// Status is the result of one stage.
type Status string

const (
	StatusPass Status = "pass"
	StatusSkip Status = "skip"
	StatusFail Status = "fail"
)

// Stage is one configuration.
type Stage struct {
	NumAlts int `json:"num_alts"`
	K       int `json:"k"`
}

func (s Stage) String() string { return fmt.Sprintf("num_alts=%d k=%d", s.NumAlts, s.K) }

// Pipeline is a task over a sequence of stages.
type Pipeline struct {
	Task       Task
	ResultsDir string
	Stages     []Stage
}

// Range returns the stages for numAlts: just k when k > 0, otherwise every
// committee size from minK to numAlts-2.
func Range(numAlts, k, minK int) []Stage {
	if k > 0 {
		return []Stage{{NumAlts: numAlts, K: k}}
	}
	var stages []Stage
	for kk := minK; kk <= numAlts-2; kk++ {
		stages = append(stages, Stage{NumAlts: numAlts, K: kk})
	}
	return stages
}

// Outcome records what happened at one stage.
type Outcome struct {
	Stage
	Task     Task          `json:"task"`
	Status   Status        `json:"status"`
	Path     string        `json:"path,omitempty"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`

	Completeness *completeness.Stats `json:"completeness,omitempty"`
	Verified     int                 `json:"verified,omitempty"`
	Summary      *results.Stats      `json:"summary,omitempty"`
}

// Options configures Execute.
type Options struct {
	Logger *slog.Logger
	// Workers and RequireNonNegative configure certificate verification.
	Workers            int
	RequireNonNegative bool
	// KeepGoing continues with later stages after a failure.
	KeepGoing bool
	// Progress, if set, returns the verification progress callback for a
	// stage. It may return nil.
	Progress func(Stage) func(done, total int)
	// OnOutcome is called as soon as each stage finishes.
	OnOutcome func(Outcome)
}

// Execute runs the pipeline stages sequentially. It returns every outcome
// produced and an error wrapping ErrFailed if any stage failed, or the
// context's error if it was cancelled.
func Execute(ctx context.Context, p Pipeline, opts Options) ([]Outcome, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var (
		outcomes []Outcome
		failed   int
	)
	for i, stage := range p.Stages {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		logger.Info("stage starting",
			"index", i+1,
			"stages", len(p.Stages),
			"task", p.Task,
			"num_alts", stage.NumAlts,
			"k", stage.K,
		)

		start := time.Now()
		out := runStage(ctx, p, stage, opts, logger)
		out.Duration = time.Since(start)
		if out.Err != nil {
			out.Error = out.Err.Error()
		}
		outcomes = append(outcomes, out)
		if opts.OnOutcome != nil {
			opts.OnOutcome(out)
		}

		logger.Info("stage finished",
			"num_alts", stage.NumAlts,
			"k", stage.K,
			"status", out.Status,
			"duration", out.Duration.Round(time.Millisecond),
		)

		if out.Status == StatusFail {
			if errors.Is(out.Err, context.Canceled) || errors.Is(out.Err, context.DeadlineExceeded) {
				return outcomes, out.Err
			}
			failed++
			if !opts.KeepGoing {
				break
			}
		}
	}

	if failed > 0 {
		return outcomes, fmt.Errorf("%w: %d of %d configurations", ErrFailed, failed, len(outcomes))
	}
	return outcomes, nil
}

func runStage(ctx context.Context, p Pipeline, stage Stage, opts Options, logger *slog.Logger) Outcome {
	out := Outcome{Stage: stage, Task: p.Task}

	m, path, err := store.Open(p.ResultsDir, stage.NumAlts, stage.K)
	out.Path = path
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn("no results for configuration", "num_alts", stage.NumAlts, "k", stage.K)
		out.Status = StatusSkip
		return out
	}
	if err != nil {
		return fail(out, fmt.Errorf("load results: %w", err))
	}

	switch p.Task {
	case TaskCheck:
		stats, err := completeness.Check(ctx, m, completeness.Options{Logger: logger})
		if err != nil {
			return fail(out, err)
		}
		out.Completeness = &stats

	case TaskVerify:
		params, err := farkas.NewParams(stage.NumAlts, stage.K)
		if err != nil {
			return fail(out, err)
		}
		params.RequireNonNegative = opts.RequireNonNegative
		jobs := m.Jobs()
		var progress func(done, total int)
		if opts.Progress != nil {
			progress = opts.Progress(stage)
		}
		err = farkas.VerifyAll(ctx, params, jobs, farkas.PoolOptions{
			Workers:  opts.Workers,
			Progress: progress,
			Logger:   logger,
		})
		if err != nil {
			return fail(out, err)
		}
		out.Verified = len(jobs)

	case TaskStats:
		summary := m.Summarize()
		out.Summary = &summary

	default:
		return fail(out, fmt.Errorf("unknown task %q", p.Task))
	}

	out.Status = StatusPass
	return out
}

func fail(out Outcome, err error) Outcome {
	out.Status = StatusFail
	out.Err = err
	return out
}
