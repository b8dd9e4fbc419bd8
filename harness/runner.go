package harness

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiihann/machbench/workload"
)

// Runner executes a workload once with a single worker and once with the
// configured number of workers.
type Runner struct {
	Workers int
	Logger  *slog.Logger
}

// NewRunner creates a Runner for the given worker count.
func NewRunner(workers int, logger *slog.Logger) *Runner {
	return &Runner{
		Workers: workers,
		Logger:  logger,
	}
}

// Run measures spec in mono and multi mode and returns the result row.
func (r *Runner) Run(ctx context.Context, spec workload.Spec) (Row, error) {
	if r.Workers < 1 {
		return Row{}, fmt.Errorf("%w: worker count %d", ErrConfiguration, r.Workers)
	}

	logger := r.Logger.With(slog.String("benchmark", spec.Name()))

	mono, err := r.Measure(ctx, logger, spec, 1)
	if err != nil {
		return Row{}, fmt.Errorf("mono: %w", err)
	}

	multi, err := r.Measure(ctx, logger, spec, r.Workers)
	if err != nil {
		return Row{}, fmt.Errorf("multi: %w", err)
	}

	return Row{
		Name:    spec.Name(),
		Mono:    mono,
		Multi:   multi,
		Workers: r.Workers,
	}, nil
}

// Measure prepares spec for n workers, runs them, and returns the time
// from the moment every worker is ready until the last one has returned.
// Setup and Finish are not included.
func (r *Runner) Measure(
	ctx context.Context,
	logger *slog.Logger,
	spec workload.Spec,
	n int,
) (time.Duration, error) {
	plan := spec.Plan()
	shares := plan.Shares(n)

	prepared, err := spec.Prepare(n)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}

	logger.InfoContext(ctx, "starting workers",
		slog.Int("workers", n),
		slog.Int64("units", plan.Total(n)),
		slog.String("distribution", plan.Distribution.String()),
	)

	elapsed, runErr := runWorkers(ctx, prepared, shares)

	// Finish runs even after a failed run so files and buffers are
	// released.
	finishErr := prepared.Finish()

	if runErr != nil {
		return 0, runErr
	}

	if finishErr != nil {
		return 0, finishErr
	}

	logger.InfoContext(ctx, "workers finished",
		slog.Int("workers", n),
		slog.Duration("elapsed", elapsed),
	)

	return elapsed, nil
}

// runWorkers starts one OS thread per share, holds them at a gate until
// all are running, then times the window between opening the gate and
// joining the last worker.
func runWorkers(
	ctx context.Context,
	prepared workload.Prepared,
	shares []workload.Share,
) (time.Duration, error) {
	g, gctx := errgroup.WithContext(ctx)

	var ready sync.WaitGroup
	ready.Add(len(shares))

	gate := make(chan struct{})

	for _, share := range shares {
		g.Go(func() error {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			ready.Done()
			<-gate

			return prepared.Work(gctx, share)
		})
	}

	ready.Wait()

	timer := StartTimer()
	close(gate)
	err := g.Wait()
	elapsed := timer.Stop()

	return elapsed, err
}
