package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunAll runs every job with at most parallelism jobs in flight, a value
// below 1 runs them one at a time. Outcomes are returned in job order.
func (r *Runner) RunAll(ctx context.Context, jobs []Job, parallelism int) []Outcome {
	if parallelism < 1 {
		parallelism = 1
	}

	outcomes := make([]Outcome, len(jobs))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)
	for i, job := range jobs {
		group.Go(func() error {
			outcomes[i] = r.Run(ctx, job)
			return nil
		})
	}
	_ = group.Wait()
	return outcomes
}
