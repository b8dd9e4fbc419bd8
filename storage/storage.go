// Package storage measures device throughput: a sequential write of one
// large file followed by uncached random reads of it.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/weiihann/machbench/harness"
	"github.com/weiihann/machbench/workload"
)

const (
	DefaultFileSize  = 4 << 30
	DefaultChunkSize = 64 << 10
	DefaultReads     = 20_000
)

// Config controls the storage benchmark. A zero FileSize, ChunkSize,
// Alignment or Reads selects the matching Default constant.
type Config struct {
	Dir       string
	RunID     string
	FileSize  int64
	ChunkSize int
	Alignment int
	Reads     int64
	Seed      uint64
}

func (c Config) withDefaults() Config {
	if c.FileSize == 0 {
		c.FileSize = DefaultFileSize
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Alignment == 0 {
		c.Alignment = DefaultAlignment
	}
	if c.Reads == 0 {
		c.Reads = DefaultReads
	}
	if c.RunID == "" {
		c.RunID = "run"
	}

	return c
}

// Validate checks that every size honours the direct I/O alignment.
func (c Config) Validate() error {
	c = c.withDefaults()

	switch {
	case c.Alignment < 0 || c.Alignment&(c.Alignment-1) != 0:
		return fmt.Errorf("%w: alignment %d is not a power of two",
			harness.ErrConfiguration, c.Alignment)
	case c.ChunkSize < 0 || c.ChunkSize%c.Alignment != 0:
		return fmt.Errorf("%w: chunk size %d is not a multiple of %d",
			harness.ErrConfiguration, c.ChunkSize, c.Alignment)
	case c.FileSize < int64(c.ChunkSize) || c.FileSize%int64(c.ChunkSize) != 0:
		return fmt.Errorf("%w: file size %d is not a multiple of chunk size %d",
			harness.ErrConfiguration, c.FileSize, c.ChunkSize)
	case c.Reads < 0:
		return fmt.Errorf("%w: negative read count %d",
			harness.ErrConfiguration, c.Reads)
	}

	return nil
}

// Benchmark owns the benchmark file for the lifetime of one run.
type Benchmark struct {
	cfg    Config
	path   string
	logger *slog.Logger
}

// New creates a Benchmark writing under cfg.Dir.
func New(cfg Config, logger *slog.Logger) (*Benchmark, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg = cfg.withDefaults()

	path := filepath.Join(cfg.Dir, "machbench-"+cfg.RunID+".bin")

	return &Benchmark{
		cfg:    cfg,
		path:   path,
		logger: logger.With(slog.String("path", path)),
	}, nil
}

// Path returns the location of the benchmark file.
func (b *Benchmark) Path() string {
	return b.path
}

// Run writes the benchmark file, checks direct I/O support, then measures
// random reads through runner. The file is removed before returning.
func (b *Benchmark) Run(ctx context.Context, runner *harness.Runner) ([]harness.Row, error) {
	// Some filesystems create the file before rejecting O_DIRECT.
	defer b.cleanup(ctx)

	f, err := OpenDirect(b.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return nil, err
	}

	write, err := b.writeSequential(ctx, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = harness.IOError("close", b.path, closeErr)
	}
	if err != nil {
		return nil, fmt.Errorf("sequential write: %w", err)
	}

	b.logger.InfoContext(ctx, "sequential write finished",
		slog.Int64("bytes", b.cfg.FileSize),
		slog.Duration("elapsed", write),
	)

	if err := CheckDirect(b.path, b.cfg.Alignment); err != nil {
		return nil, err
	}

	read, err := runner.Run(ctx, b.RandomRead())
	if err != nil {
		return nil, fmt.Errorf("random read: %w", err)
	}

	return []harness.Row{
		{Name: "Sequential Write", Mono: write, Workers: 1, MonoOnly: true},
		read,
	}, nil
}

// writeSequential fills f chunk by chunk. Only the write loop and the
// final fsync are timed.
func (b *Benchmark) writeSequential(ctx context.Context, f *os.File) (time.Duration, error) {
	chunk := AlignedBlock(b.cfg.ChunkSize, b.cfg.Alignment)

	// Random content keeps compressing filesystems from shrinking the file.
	rng := rand.New(rand.NewPCG(b.cfg.Seed, 0))
	for i := range chunk {
		chunk[i] = byte(rng.Uint32())
	}

	chunks := b.cfg.FileSize / int64(b.cfg.ChunkSize)

	return harness.Time(func() error {
		for i := range chunks {
			if i%64 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			if _, err := f.Write(chunk); err != nil {
				return classify("write", b.path, err)
			}
		}

		if err := f.Sync(); err != nil {
			return harness.IOError("fsync", b.path, err)
		}

		return nil
	})
}

func (b *Benchmark) cleanup(ctx context.Context) {
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		b.logger.WarnContext(ctx, "failed to remove benchmark file",
			slog.String("error", err.Error()),
		)
	}
}

// RandomRead returns the read-phase workload over the benchmark file.
func (b *Benchmark) RandomRead() workload.Spec {
	return &randomRead{
		path:      b.path,
		size:      b.cfg.FileSize,
		alignment: int64(b.cfg.Alignment),
		reads:     b.cfg.Reads,
		seed:      b.cfg.Seed,
	}
}

type randomRead struct {
	path      string
	size      int64
	alignment int64
	reads     int64
	seed      uint64
}

func (r *randomRead) Name() string { return "Random Read (direct)" }

func (r *randomRead) Plan() workload.Plan {
	return workload.Plan{Units: r.reads, Distribution: workload.Split}
}

// Prepare opens one uncached handle and one aligned buffer per worker.
func (r *randomRead) Prepare(workers int) (workload.Prepared, error) {
	run := &readRun{
		readers: make([]*reader, 0, workers),
		want:    r.Plan().Total(workers),
	}

	for i := range workers {
		f, err := OpenDirect(r.path, os.O_RDONLY)
		if err != nil {
			run.Finish()

			return nil, err
		}

		run.readers = append(run.readers, &reader{
			file:    f,
			path:    r.path,
			buf:     AlignedBlock(int(r.alignment), int(r.alignment)),
			offsets: newOffsetSource(r.seed+uint64(i), r.size, r.alignment),
			issued:  &run.issued,
		})
	}

	return run, nil
}

type readRun struct {
	readers []*reader
	issued  atomic.Int64
	want    int64
}

func (r *readRun) Work(ctx context.Context, share workload.Share) error {
	return r.readers[share.Worker].run(ctx, share.Count)
}

func (r *readRun) Finish() error {
	var err error
	for _, rd := range r.readers {
		if cerr := rd.file.Close(); cerr != nil && err == nil {
			err = harness.IOError("close", rd.path, cerr)
		}
	}

	if err != nil {
		return err
	}

	if got := r.issued.Load(); got != r.want && len(r.readers) > 0 {
		return fmt.Errorf("%w: issued %d reads, want %d",
			harness.ErrInvariant, got, r.want)
	}

	return nil
}

type reader struct {
	file    *os.File
	path    string
	buf     []byte
	offsets *offsetSource
	count   int64
	issued  *atomic.Int64
}

func (rd *reader) run(ctx context.Context, count int64) error {
	// Publish once per worker so the counter adds no contention to the
	// read loop.
	defer func() { rd.issued.Add(rd.count) }()

	length := int64(len(rd.buf))

	for i := range count {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		off := rd.offsets.Next()
		if err := checkAligned(off, length, rd.offsets.alignment); err != nil {
			return err
		}

		n, err := rd.file.ReadAt(rd.buf, off)
		if err != nil {
			return classify("read", rd.path, err)
		}
		if int64(n) != length {
			return harness.IOError("read", rd.path,
				fmt.Errorf("short read of %d bytes at offset %d", n, off))
		}

		rd.count++
	}

	return nil
}

func checkAligned(off, length, alignment int64) error {
	if off%alignment != 0 || length%alignment != 0 {
		return fmt.Errorf("%w: read at %d of %d bytes breaks %d-byte alignment",
			harness.ErrInvariant, off, length, alignment)
	}

	return nil
}

// offsetSource draws block-aligned read offsets from one worker's private
// random stream.
type offsetSource struct {
	rng       *rand.Rand
	limit     int64
	alignment int64
}

func newOffsetSource(seed uint64, size, alignment int64) *offsetSource {
	return &offsetSource{
		rng:       rand.New(rand.NewPCG(seed, 0x6d616368)),
		limit:     size - alignment + 1,
		alignment: alignment,
	}
}

// Next returns an offset in [0, size-alignment] rounded down to the
// alignment boundary.
func (s *offsetSource) Next() int64 {
	return AlignDown(s.rng.Int64N(s.limit), s.alignment)
}
