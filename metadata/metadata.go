// Package metadata measures filesystem metadata throughput by creating and
// deleting many empty files.
//
// Unlike the other categories, every worker performs the full operation
// count: N workers issue N times the creates and deletes of a single
// worker. Metadata cost is driven by the total operation count under
// contention, so this asymmetry is intentional and must be kept.
package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/weiihann/machbench/harness"
	"github.com/weiihann/machbench/workload"
)

// DefaultPerWorker is the number of files each worker creates and deletes.
const DefaultPerWorker = 50_000

// Files creates PerWorker empty files in a private subdirectory per worker,
// then deletes them.
type Files struct {
	Dir       string
	RunID     string
	PerWorker int64
	Logger    *slog.Logger
}

func (f Files) Name() string { return "Filesystem Metadata (create/delete)" }

func (f Files) Plan() workload.Plan {
	return workload.Plan{Units: f.PerWorker, Distribution: workload.Replicate}
}

// Root returns the directory holding the per-worker subdirectories.
func (f Files) Root() string {
	runID := f.RunID
	if runID == "" {
		runID = "run"
	}

	return filepath.Join(f.Dir, "machbench-fs-"+runID)
}

// Prepare creates one empty subdirectory per worker and builds every file
// path up front.
func (f Files) Prepare(workers int) (workload.Prepared, error) {
	root := f.Root()
	if err := os.RemoveAll(root); err != nil {
		return nil, harness.IOError("clean", root, err)
	}

	run := &filesRun{
		root:   root,
		paths:  make([][]string, workers),
		ops:    make([]opCount, workers),
		want:   f.Plan().Total(workers),
		logger: f.Logger,
	}

	for i := range workers {
		dir := filepath.Join(root, "t_"+strconv.Itoa(i))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			run.removeTree()

			return nil, harness.IOError("mkdir", dir, err)
		}

		paths := make([]string, f.PerWorker)
		for j := range paths {
			paths[j] = filepath.Join(dir, strconv.Itoa(j)+".txt")
		}

		run.paths[i] = paths
	}

	return run, nil
}

// opCount is owned by a single worker and padded to its own cache line.
type opCount struct {
	created int64
	deleted int64
	_       [48]byte
}

type filesRun struct {
	root   string
	paths  [][]string
	ops    []opCount
	want   int64
	logger *slog.Logger
}

func (r *filesRun) Work(ctx context.Context, share workload.Share) error {
	paths := r.paths[share.Worker][:share.Count]
	ops := &r.ops[share.Worker]

	for i, path := range paths {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		f, err := os.Create(path)
		if err != nil {
			return harness.IOError("create", path, err)
		}
		if err := f.Close(); err != nil {
			return harness.IOError("close", path, err)
		}

		ops.created++
	}

	for i, path := range paths {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if err := os.Remove(path); err != nil {
			return harness.IOError("remove", path, err)
		}

		ops.deleted++
	}

	return nil
}

// Counts returns the number of files created and deleted across workers.
func (r *filesRun) Counts() (created, deleted int64) {
	for _, ops := range r.ops {
		created += ops.created
		deleted += ops.deleted
	}

	return created, deleted
}

func (r *filesRun) Finish() error {
	created, deleted := r.Counts()
	r.removeTree()

	if created != r.want || deleted != r.want {
		return fmt.Errorf("%w: created %d and deleted %d files, want %d each",
			harness.ErrInvariant, created, deleted, r.want)
	}

	return nil
}

func (r *filesRun) removeTree() {
	if err := os.RemoveAll(r.root); err != nil && r.logger != nil {
		r.logger.Warn("failed to remove metadata directory",
			slog.String("path", r.root),
			slog.String("error", err.Error()),
		)
	}
}
