package farkas

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Dicklesworthstone/pavcore/internal/history"
)

// DefaultWorkers is the number of certificates verified concurrently when
// PoolOptions.Workers is not set.
const DefaultWorkers = 8

// Job is one history together with the certificate claimed for it.
type Job struct {
	History     history.History
	Certificate *Certificate
}

// PoolOptions configures VerifyAll.
type PoolOptions struct {
	// Workers bounds concurrent verifications. Zero means DefaultWorkers.
	Workers int
	// Progress, if set, is called after each successful verification with
	// the number done so far. Calls are serialized.
	Progress func(done, total int)
	Logger   *slog.Logger
}

// VerifyAll verifies every job with a bounded pool of workers. It stops
// scheduling new work at the first failure and returns that failure; the
// outcome does not depend on the order workers finish in, only which of
// several failures is reported does.
func VerifyAll(ctx context.Context, p Params, jobs []Job, opts PoolOptions) error {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("verifying certificates",
		"num_alts", p.NumAlts,
		"k", p.K,
		"jobs", len(jobs),
		"workers", workers,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var (
		mu   sync.Mutex
		done int
	)
	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := Verify(p, job.History, job.Certificate); err != nil {
				logger.Debug("certificate rejected", "history", job.History.Label(), "error", err)
				return err
			}
			mu.Lock()
			done++
			if opts.Progress != nil {
				opts.Progress(done, len(jobs))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
