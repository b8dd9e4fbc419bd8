// Package main provides the CLI entry point for machbench, a micro-benchmark
// harness comparing single-worker and multi-worker machine performance.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/weiihann/machbench/harness"
	"github.com/weiihann/machbench/report"
	"github.com/weiihann/machbench/suite"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	root := newRootCmd(logger)
	if err := root.Execute(); err != nil {
		logger.Error("benchmark failed", slog.String("error", err.Error()))
		os.Exit(exitCode(err))
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "machbench",
		Short: "Single vs multi worker machine benchmarks",
		Long: `Machbench measures CPU throughput, memory bandwidth, shared-memory
contention, storage I/O and filesystem metadata throughput, once with a single
worker and once with many, so scaling behaviour can be compared on a host.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(logger))

	return root
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	defaults := suite.DefaultConfig()

	var (
		dir              string
		threads          int
		categories       []string
		fibDepth         int
		fibUnits         int64
		memElements      int64
		mutexIncrements  int64
		atomicIncrements int64
		ioFileSize       int64
		ioReads          int64
		fsFiles          int64
		outputJSON       bool
		outputYAML       bool
		metricsFile      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every benchmark category against a target directory",
		Long: `Run the CPU, memory, mutex, atomic, storage and metadata benchmarks
in that order. Storage and metadata benchmarks create and remove files under
--dir, which must be on a filesystem supporting uncached direct I/O.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmark(cmd.Context(), logger, runConfig{
				dir:              dir,
				threads:          threads,
				categories:       categories,
				fibDepth:         fibDepth,
				fibUnits:         fibUnits,
				memElements:      memElements,
				mutexIncrements:  mutexIncrements,
				atomicIncrements: atomicIncrements,
				ioFileSize:       ioFileSize,
				ioReads:          ioReads,
				fsFiles:          fsFiles,
				outputJSON:       outputJSON,
				outputYAML:       outputYAML,
				metricsFile:      metricsFile,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&dir, "dir", "d", "",
		"Target directory for storage and metadata benchmarks")
	flags.IntVarP(&threads, "threads", "t", 0,
		"Worker count for multi mode (0 = half the visible CPUs)")
	flags.StringSliceVar(&categories, "categories", nil,
		"Categories to run (cpu,memory,mutex,atomic,storage,metadata)")
	flags.IntVar(&fibDepth, "fib-depth", defaults.FibDepth,
		"Fibonacci input depth per CPU work unit")
	flags.Int64Var(&fibUnits, "fib-units", defaults.FibUnits,
		"Total Fibonacci evaluations")
	flags.Int64Var(&memElements, "mem-elements", defaults.MemoryElements,
		"float64 elements streamed by the memory benchmark")
	flags.Int64Var(&mutexIncrements, "mutex-increments", defaults.MutexIncrements,
		"Total increments of the mutex-guarded counter")
	flags.Int64Var(&atomicIncrements, "atomic-increments", defaults.AtomicIncrements,
		"Total increments of the atomic counter")
	flags.Int64Var(&ioFileSize, "io-file-size", defaults.Storage.FileSize,
		"Size in bytes of the storage benchmark file (0 = 4 GiB default)")
	flags.Int64Var(&ioReads, "io-reads", defaults.Storage.Reads,
		"Total direct random reads (0 = 20000 default)")
	flags.Int64Var(&fsFiles, "fs-files", defaults.FilesPerWorker,
		"Files each worker creates and deletes")
	flags.BoolVar(&outputJSON, "json", false,
		"Output results as JSON instead of table")
	flags.BoolVar(&outputYAML, "yaml", false,
		"Output results as YAML instead of table")
	flags.StringVar(&metricsFile, "metrics-file", "",
		"Also write results to this file in Prometheus text format")

	_ = cmd.MarkFlagRequired("dir")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")

	return cmd
}

type runConfig struct {
	dir              string
	threads          int
	categories       []string
	fibDepth         int
	fibUnits         int64
	memElements      int64
	mutexIncrements  int64
	atomicIncrements int64
	ioFileSize       int64
	ioReads          int64
	fsFiles          int64
	outputJSON       bool
	outputYAML       bool
	metricsFile      string
}

// defaultWorkers uses half the visible CPUs.
func defaultWorkers() int {
	return max(1, runtime.NumCPU()/2)
}

func runBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	cfg runConfig,
) error {
	workers := cfg.threads
	if workers == 0 {
		workers = defaultWorkers()
	}

	suiteCfg := suite.DefaultConfig()
	suiteCfg.Dir = cfg.dir
	suiteCfg.Workers = workers
	suiteCfg.Categories = cfg.categories
	suiteCfg.FibDepth = cfg.fibDepth
	suiteCfg.FibUnits = cfg.fibUnits
	suiteCfg.MemoryElements = cfg.memElements
	suiteCfg.MutexIncrements = cfg.mutexIncrements
	suiteCfg.AtomicIncrements = cfg.atomicIncrements
	suiteCfg.Storage.FileSize = cfg.ioFileSize
	suiteCfg.Storage.Reads = cfg.ioReads
	suiteCfg.Storage.Seed = uint64(time.Now().UnixNano())
	suiteCfg.FilesPerWorker = cfg.fsFiles

	s, err := suite.New(suiteCfg, logger)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting benchmark",
		slog.String("run_id", s.RunID()),
		slog.String("dir", cfg.dir),
		slog.Int("workers", workers),
		slog.Any("categories", cfg.categories),
	)

	started := time.Now()

	rows, err := s.Run(ctx, func(row harness.Row) {
		logger.InfoContext(ctx, "result",
			slog.String("benchmark", row.Name),
			slog.Duration("mono", row.Mono),
			slog.Duration("multi", row.Multi),
		)
	})
	if err != nil {
		return err
	}

	rep := report.Report{
		RunID:     s.RunID(),
		Dir:       cfg.dir,
		Workers:   workers,
		FileSize:  suiteCfg.Storage.FileSize,
		StartedAt: started,
		Rows:      rows,
	}

	switch {
	case cfg.outputJSON:
		if err := report.GenerateJSON(os.Stdout, rep); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}
	case cfg.outputYAML:
		if err := report.GenerateYAML(os.Stdout, rep); err != nil {
			return fmt.Errorf("generate YAML report: %w", err)
		}
	default:
		if err := report.Generate(os.Stdout, rep); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
	}

	if cfg.metricsFile != "" {
		if err := report.WriteTextfile(cfg.metricsFile, rep); err != nil {
			return fmt.Errorf("write metrics file: %w", err)
		}
	}

	logger.InfoContext(ctx, "benchmark complete",
		slog.Duration("total", time.Since(started)),
	)

	return nil
}

// exitCode maps the error taxonomy to distinct process exit codes.
func exitCode(err error) int {
	switch kind := harness.Kind(err); {
	case errors.Is(kind, harness.ErrConfiguration):
		return 2
	case errors.Is(kind, harness.ErrCapability):
		return 3
	case errors.Is(kind, harness.ErrIO):
		return 4
	case errors.Is(kind, harness.ErrInvariant):
		return 5
	default:
		return 1
	}
}
