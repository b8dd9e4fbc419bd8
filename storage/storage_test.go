package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/machbench/harness"
	"github.com/weiihann/machbench/workload"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func smallConfig(dir string) Config {
	return Config{
		Dir:       dir,
		RunID:     "test",
		FileSize:  1 << 20,
		ChunkSize: 64 << 10,
		Alignment: DefaultAlignment,
		Reads:     256,
		Seed:      7,
	}
}

func TestOffsetsAreAligned(t *testing.T) {
	for _, alignment := range []int64{512, 4096} {
		size := int64(64 << 20)
		src := newOffsetSource(42, size, alignment)

		for range 100_000 {
			off := src.Next()
			require.Zero(t, off%alignment, "offset %d", off)
			require.GreaterOrEqual(t, off, int64(0))
			require.LessOrEqual(t, off+alignment, size)
		}
	}
}

func TestOffsetSourcesAreIndependentPerWorker(t *testing.T) {
	a := newOffsetSource(1, 1<<30, 4096)
	b := newOffsetSource(2, 1<<30, 4096)

	same := 0
	for range 64 {
		if a.Next() == b.Next() {
			same++
		}
	}

	assert.Less(t, same, 64)
}

func TestAlignDown(t *testing.T) {
	assert.EqualValues(t, 0, AlignDown(4095, 4096))
	assert.EqualValues(t, 4096, AlignDown(4096, 4096))
	assert.EqualValues(t, 8192, AlignDown(12287, 4096))
}

func TestAlignedBlock(t *testing.T) {
	for _, alignment := range []int{512, 4096} {
		buf := AlignedBlock(alignment*2, alignment)
		require.Len(t, buf, alignment*2)

		addr := uintptr(unsafe.Pointer(&buf[0]))
		assert.Zero(t, addr%uintptr(alignment))
	}
}

func TestCheckAligned(t *testing.T) {
	assert.NoError(t, checkAligned(8192, 4096, 4096))
	assert.ErrorIs(t, checkAligned(100, 4096, 4096), harness.ErrInvariant)
	assert.ErrorIs(t, checkAligned(4096, 100, 4096), harness.ErrInvariant)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		ok   bool
	}{
		{"small", func(*Config) {}, true},
		{"defaults", func(c *Config) { *c = Config{} }, true},
		{"alignment not power of two", func(c *Config) { c.Alignment = 3000 }, false},
		{"chunk not aligned", func(c *Config) { c.ChunkSize = 5000 }, false},
		{"file not chunk multiple", func(c *Config) { c.FileSize = 100_000 }, false},
		{"file smaller than chunk", func(c *Config) { c.FileSize = 4096 }, false},
		{"negative reads", func(c *Config) { c.Reads = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig(t.TempDir())
			tt.mod(&cfg)

			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, harness.ErrConfiguration)
			}
		})
	}
}

func TestRandomReadPlanSplitsReads(t *testing.T) {
	bench, err := New(smallConfig(t.TempDir()), testLogger())
	require.NoError(t, err)

	plan := bench.RandomRead().Plan()
	assert.Equal(t, workload.Split, plan.Distribution)

	for n := 1; n <= 16; n++ {
		var sum int64
		for _, s := range plan.Shares(n) {
			sum += s.Count
		}
		assert.EqualValues(t, 256, sum)
	}
}

// The target directory may or may not support O_DIRECT. Either the run
// succeeds or it fails with a capability error before reporting any row;
// it never silently measures cached reads.
func TestBenchmarkRun(t *testing.T) {
	dir := t.TempDir()

	bench, err := New(smallConfig(dir), testLogger())
	require.NoError(t, err)

	rows, err := bench.Run(context.Background(), harness.NewRunner(4, testLogger()))
	if err != nil {
		require.ErrorIs(t, err, harness.ErrCapability)
		assert.Nil(t, rows)
	} else {
		require.Len(t, rows, 2)

		assert.Equal(t, "Sequential Write", rows[0].Name)
		assert.True(t, rows[0].MonoOnly)
		assert.Positive(t, rows[0].Mono)

		assert.Equal(t, "Random Read (direct)", rows[1].Name)
		assert.Equal(t, 4, rows[1].Workers)
		assert.False(t, rows[1].MonoOnly)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "benchmark file left behind")
}

func TestReadRunIssuesExpectedReads(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(dir)

	bench, err := New(cfg, testLogger())
	require.NoError(t, err)

	f, err := OpenDirect(bench.Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		os.Remove(bench.Path())
		require.ErrorIs(t, err, harness.ErrCapability)
		t.Skip("target filesystem has no direct I/O")
	}
	defer os.Remove(bench.Path())

	_, err = bench.writeSequential(context.Background(), f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	spec := bench.RandomRead()
	prepared, err := spec.Prepare(3)
	require.NoError(t, err)

	for _, s := range spec.Plan().Shares(3) {
		require.NoError(t, prepared.Work(context.Background(), s))
	}

	assert.EqualValues(t, 256, prepared.(*readRun).issued.Load())
	require.NoError(t, prepared.Finish())
}

func TestZeroFieldsSelectDefaults(t *testing.T) {
	bench, err := New(Config{Dir: t.TempDir()}, testLogger())
	require.NoError(t, err)

	assert.EqualValues(t, DefaultReads, bench.RandomRead().Plan().Units)
	assert.EqualValues(t, DefaultFileSize, bench.cfg.FileSize)
	assert.Equal(t, DefaultChunkSize, bench.cfg.ChunkSize)
	assert.Equal(t, DefaultAlignment, bench.cfg.Alignment)
}
