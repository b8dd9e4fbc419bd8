// Package contention measures the cost of many workers updating one shared
// 64-bit counter, serialised either by a mutex or by atomic adds.
package contention

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/weiihann/machbench/harness"
	"github.com/weiihann/machbench/workload"
)

// Mutex increments a lock-guarded counter Increments times in total.
type Mutex struct {
	Increments int64
}

func (m Mutex) Name() string { return "Memory shared access (mutex)" }

func (m Mutex) Plan() workload.Plan {
	return workload.Plan{Units: m.Increments, Distribution: workload.Split}
}

func (m Mutex) Prepare(workers int) (workload.Prepared, error) {
	return &mutexCounter{want: m.Plan().Total(workers)}, nil
}

type mutexCounter struct {
	mu    sync.Mutex
	value int64
	want  int64
}

func (c *mutexCounter) Work(_ context.Context, share workload.Share) error {
	for range share.Count {
		c.mu.Lock()
		c.value++
		c.mu.Unlock()
	}

	return nil
}

func (c *mutexCounter) Finish() error {
	c.mu.Lock()
	got := c.value
	c.mu.Unlock()

	return verify("mutex", got, c.want)
}

// Atomic increments a lock-free counter Increments times in total.
type Atomic struct {
	Increments int64
}

func (a Atomic) Name() string { return "Memory shared access (atomic)" }

func (a Atomic) Plan() workload.Plan {
	return workload.Plan{Units: a.Increments, Distribution: workload.Split}
}

func (a Atomic) Prepare(workers int) (workload.Prepared, error) {
	return &atomicCounter{want: a.Plan().Total(workers)}, nil
}

type atomicCounter struct {
	value atomic.Int64
	want  int64
}

func (c *atomicCounter) Work(_ context.Context, share workload.Share) error {
	for range share.Count {
		c.value.Add(1)
	}

	return nil
}

// Finish reads the counter after the join, which orders it after every
// worker's last Add.
func (c *atomicCounter) Finish() error {
	return verify("atomic", c.value.Load(), c.want)
}

func verify(strategy string, got, want int64) error {
	if got != want {
		return fmt.Errorf("%w: %s counter = %d, want %d",
			harness.ErrInvariant, strategy, got, want)
	}

	return nil
}
