package workload

import (
	"context"
	"sync/atomic"
)

// Fibonacci keeps the CPU busy computing fib(Depth) recursively, Units
// times in total.
type Fibonacci struct {
	Depth int
	Units int64
}

func (f Fibonacci) Name() string { return "CPU Bound (Fibonacci)" }

func (f Fibonacci) Plan() Plan {
	return Plan{Units: f.Units, Distribution: Split}
}

func (f Fibonacci) Prepare(int) (Prepared, error) {
	return &fibRun{depth: f.Depth}, nil
}

type fibRun struct {
	depth int
	// sink stops the compiler from discarding the computation.
	sink atomic.Uint64
}

func (r *fibRun) Work(_ context.Context, share Share) error {
	var acc uint64
	for range share.Count {
		acc += fib(r.depth)
	}

	r.sink.Add(acc)

	return nil
}

func (r *fibRun) Finish() error { return nil }

func fib(n int) uint64 {
	if n <= 1 {
		return uint64(n)
	}

	return fib(n-1) + fib(n-2)
}
