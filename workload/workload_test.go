package workload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharesSumToUnits(t *testing.T) {
	for _, units := range []int64{0, 1, 7, 100, 1_000_003, 20_000_000} {
		for n := 1; n <= 64; n++ {
			plan := Plan{Units: units, Distribution: Split}
			shares := plan.Shares(n)
			require.Len(t, shares, n)

			var sum int64
			next := int64(0)
			for i, s := range shares {
				assert.Equal(t, i, s.Worker)
				assert.Equal(t, n, s.Workers)
				assert.Equal(t, next, s.Offset, "shares must be contiguous")
				sum += s.Count
				next = s.Offset + s.Count
			}

			assert.Equal(t, units, sum, "units=%d n=%d", units, n)
			assert.Equal(t, units, plan.Total(n))
		}
	}
}

func TestSharesRemainderGoesToLastWorker(t *testing.T) {
	shares := Plan{Units: 10, Distribution: Split}.Shares(4)

	counts := make([]int64, len(shares))
	for i, s := range shares {
		counts[i] = s.Count
	}

	assert.Equal(t, []int64{2, 2, 2, 4}, counts)
}

// Replicate is the metadata benchmark's model: multi-mode total work grows
// with the worker count. It must not be "fixed" into Split.
func TestReplicateGivesEveryWorkerTheFullPlan(t *testing.T) {
	plan := Plan{Units: 10_000, Distribution: Replicate}

	shares := plan.Shares(3)
	for _, s := range shares {
		assert.EqualValues(t, 10_000, s.Count)
	}

	assert.EqualValues(t, 30_000, plan.Total(3))
	assert.EqualValues(t, 10_000, plan.Total(1))
}

func TestSharesInvalidWorkerCount(t *testing.T) {
	assert.Nil(t, Plan{Units: 10}.Shares(0))
}

func TestFib(t *testing.T) {
	tests := []struct {
		n    int
		want uint64
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{10, 55},
		{20, 6765},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, fib(tt.n), "fib(%d)", tt.n)
	}
}

func TestFibonacciWorkload(t *testing.T) {
	spec := Fibonacci{Depth: 10, Units: 7}
	assert.Equal(t, Plan{Units: 7, Distribution: Split}, spec.Plan())

	prepared, err := spec.Prepare(3)
	require.NoError(t, err)

	for _, s := range spec.Plan().Shares(3) {
		require.NoError(t, prepared.Work(context.Background(), s))
	}
	require.NoError(t, prepared.Finish())

	assert.EqualValues(t, 7*55, prepared.(*fibRun).sink.Load())
}

func TestBandwidthTouchesEveryElementOnce(t *testing.T) {
	spec := Bandwidth{Elements: 1001}

	prepared, err := spec.Prepare(4)
	require.NoError(t, err)

	run := prepared.(*bandwidthRun)
	for _, s := range spec.Plan().Shares(4) {
		require.NoError(t, run.Work(context.Background(), s))
	}

	for i, v := range run.data {
		require.InDelta(t, 3.7, v, 1e-9, "element %d", i)
	}

	require.NoError(t, run.Finish())
	assert.Nil(t, run.data)
}

func TestDistributionString(t *testing.T) {
	assert.Equal(t, "split", Split.String())
	assert.Equal(t, "replicate", Replicate.String())
	assert.Equal(t, "distribution(9)", Distribution(9).String())
}
