// Package workload describes benchmark workloads as fixed amounts of work
// that can be split across a number of workers.
package workload

import (
	"context"
	"fmt"
)

// Distribution controls how a Plan's units are handed to workers.
type Distribution int

const (
	// Split divides the units across workers so that the total is the
	// same in mono and multi mode.
	Split Distribution = iota

	// Replicate gives every worker the full number of units, so the
	// multi-mode total grows with the worker count.
	Replicate
)

func (d Distribution) String() string {
	switch d {
	case Split:
		return "split"
	case Replicate:
		return "replicate"
	default:
		return fmt.Sprintf("distribution(%d)", int(d))
	}
}

// Plan is the amount of work a workload performs in one mode.
type Plan struct {
	Units        int64
	Distribution Distribution
}

// Share is the slice of a Plan assigned to a single worker. Offset is the
// index of the first unit the worker owns.
type Share struct {
	Worker  int
	Workers int
	Offset  int64
	Count   int64
}

// Shares partitions the plan across n workers. Under Split every worker
// gets Units/n and the last one also takes the remainder.
func (p Plan) Shares(n int) []Share {
	if n < 1 {
		return nil
	}

	shares := make([]Share, n)

	if p.Distribution == Replicate {
		for i := range shares {
			shares[i] = Share{Worker: i, Workers: n, Count: p.Units}
		}

		return shares
	}

	for i := range shares {
		off, count := Range(p.Units, i, n)
		shares[i] = Share{Worker: i, Workers: n, Offset: off, Count: count}
	}

	return shares
}

// Total returns the number of units processed across n workers.
func (p Plan) Total(n int) int64 {
	if p.Distribution == Replicate {
		return p.Units * int64(n)
	}

	return p.Units
}

// Range returns the first index and the length of worker i's part of
// total items split n ways.
func Range(total int64, i, n int) (int64, int64) {
	per := total / int64(n)
	off := per * int64(i)

	if i == n-1 {
		return off, total - off
	}

	return off, per
}

// Spec is a benchmark workload. Prepare performs all setup outside the
// timed window and returns a handle the workers run against.
type Spec interface {
	Name() string
	Plan() Plan
	Prepare(workers int) (Prepared, error)
}

// Prepared is a workload whose shared state is ready to be measured.
// Work is called once per worker, concurrently, inside the timed window.
// Finish is called once after all workers have returned.
type Prepared interface {
	Work(ctx context.Context, share Share) error
	Finish() error
}
