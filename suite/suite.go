// Package suite runs every benchmark category in a fixed order and collects
// their results.
package suite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/weiihann/machbench/contention"
	"github.com/weiihann/machbench/harness"
	"github.com/weiihann/machbench/metadata"
	"github.com/weiihann/machbench/storage"
	"github.com/weiihann/machbench/workload"
)

// Category names, in execution order.
const (
	CategoryCPU      = "cpu"
	CategoryMemory   = "memory"
	CategoryMutex    = "mutex"
	CategoryAtomic   = "atomic"
	CategoryStorage  = "storage"
	CategoryMetadata = "metadata"
)

// Categories returns every category in the order they run.
func Categories() []string {
	return []string{
		CategoryCPU, CategoryMemory, CategoryMutex,
		CategoryAtomic, CategoryStorage, CategoryMetadata,
	}
}

// Config holds the parameters of one suite run.
type Config struct {
	Dir     string
	Workers int
	RunID   string

	FibDepth         int
	FibUnits         int64
	MemoryElements   int64
	MutexIncrements  int64
	AtomicIncrements int64
	Storage          storage.Config
	FilesPerWorker   int64

	// Categories restricts the run to a subset. Empty means all.
	Categories []string
}

// DefaultConfig returns the sizes used when no flags override them.
func DefaultConfig() Config {
	return Config{
		FibDepth:         38,
		FibUnits:         32,
		MemoryElements:   100_000_000,
		MutexIncrements:  2_000_000,
		AtomicIncrements: 20_000_000,
		Storage: storage.Config{
			FileSize:  storage.DefaultFileSize,
			ChunkSize: storage.DefaultChunkSize,
			Alignment: storage.DefaultAlignment,
			Reads:     storage.DefaultReads,
		},
		FilesPerWorker: metadata.DefaultPerWorker,
	}
}

// Suite sequences the benchmark categories.
type Suite struct {
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and returns a Suite ready to run.
func New(cfg Config, logger *slog.Logger) (*Suite, error) {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &Suite{
		cfg:    cfg,
		logger: logger.With(slog.String("run_id", cfg.RunID)),
	}, nil
}

// RunID identifies the run in artifact names and reports.
func (s *Suite) RunID() string {
	return s.cfg.RunID
}

func validate(cfg Config) error {
	if cfg.Workers < 1 {
		return fmt.Errorf("%w: worker count must be positive, got %d",
			harness.ErrConfiguration, cfg.Workers)
	}

	for _, c := range cfg.Categories {
		if !slices.Contains(Categories(), c) {
			return fmt.Errorf("%w: unknown category %q (want one of %s)",
				harness.ErrConfiguration, c, strings.Join(Categories(), ", "))
		}
	}

	if err := checkSizes(cfg); err != nil {
		return err
	}

	if err := cfg.Storage.Validate(); err != nil {
		return err
	}

	return checkDir(cfg.Dir)
}

// checkSizes rejects negative workload sizes before any benchmark sees
// them.
func checkSizes(cfg Config) error {
	sizes := []struct {
		name  string
		value int64
	}{
		{"fibonacci depth", int64(cfg.FibDepth)},
		{"fibonacci units", cfg.FibUnits},
		{"memory elements", cfg.MemoryElements},
		{"mutex increments", cfg.MutexIncrements},
		{"atomic increments", cfg.AtomicIncrements},
		{"files per worker", cfg.FilesPerWorker},
	}

	for _, size := range sizes {
		if size.value < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %d",
				harness.ErrConfiguration, size.name, size.value)
		}
	}

	return nil
}

// checkDir verifies that dir exists, is a directory and accepts new files.
func checkDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: target directory is required",
			harness.ErrConfiguration)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: target directory: %w",
			harness.ErrConfiguration, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory",
			harness.ErrConfiguration, dir)
	}

	probe, err := os.CreateTemp(dir, ".machbench-probe-*")
	if err != nil {
		return fmt.Errorf("%w: target directory not writable: %w",
			harness.ErrConfiguration, err)
	}

	probe.Close()

	if err := os.Remove(probe.Name()); err != nil {
		return fmt.Errorf("%w: remove probe file: %w",
			harness.ErrConfiguration, err)
	}

	return nil
}

func (s *Suite) enabled(category string) bool {
	return len(s.cfg.Categories) == 0 || slices.Contains(s.cfg.Categories, category)
}

// Run executes the enabled categories in order. Each row is passed to emit
// as soon as it is measured. The first error stops the suite and is
// returned as a *harness.CategoryError.
func (s *Suite) Run(ctx context.Context, emit func(harness.Row)) ([]harness.Row, error) {
	runner := harness.NewRunner(s.cfg.Workers, s.logger)

	var rows []harness.Row

	for _, category := range Categories() {
		if !s.enabled(category) {
			continue
		}

		s.logger.InfoContext(ctx, "starting category",
			slog.String("category", category),
			slog.Int("workers", s.cfg.Workers),
		)

		produced, err := s.runCategory(ctx, runner, category)
		if err != nil {
			return rows, &harness.CategoryError{Category: category, Err: err}
		}

		for _, row := range produced {
			if emit != nil {
				emit(row)
			}

			rows = append(rows, row)
		}
	}

	return rows, nil
}

func (s *Suite) runCategory(
	ctx context.Context,
	runner *harness.Runner,
	category string,
) ([]harness.Row, error) {
	var spec workload.Spec

	switch category {
	case CategoryCPU:
		spec = workload.Fibonacci{Depth: s.cfg.FibDepth, Units: s.cfg.FibUnits}
	case CategoryMemory:
		spec = workload.Bandwidth{Elements: s.cfg.MemoryElements}
	case CategoryMutex:
		spec = contention.Mutex{Increments: s.cfg.MutexIncrements}
	case CategoryAtomic:
		spec = contention.Atomic{Increments: s.cfg.AtomicIncrements}
	case CategoryStorage:
		return s.runStorage(ctx, runner)
	case CategoryMetadata:
		spec = metadata.Files{
			Dir:       s.cfg.Dir,
			RunID:     s.cfg.RunID,
			PerWorker: s.cfg.FilesPerWorker,
			Logger:    s.logger,
		}
	default:
		return nil, fmt.Errorf("unknown category %q", category)
	}

	row, err := runner.Run(ctx, spec)
	if err != nil {
		return nil, err
	}

	return []harness.Row{row}, nil
}

func (s *Suite) runStorage(ctx context.Context, runner *harness.Runner) ([]harness.Row, error) {
	cfg := s.cfg.Storage
	cfg.Dir = s.cfg.Dir
	cfg.RunID = s.cfg.RunID

	bench, err := storage.New(cfg, s.logger)
	if err != nil {
		return nil, err
	}

	return bench.Run(ctx, runner)
}
