package workload

import "context"

// Bandwidth streams over a buffer of Elements float64 values, reading and
// rewriting each one. Workers own disjoint index ranges.
type Bandwidth struct {
	Elements int64
}

func (b Bandwidth) Name() string { return "Memory Bandwidth (non-shared)" }

func (b Bandwidth) Plan() Plan {
	return Plan{Units: b.Elements, Distribution: Split}
}

// Prepare allocates and touches the whole buffer so page faults stay out
// of the measurement.
func (b Bandwidth) Prepare(int) (Prepared, error) {
	data := make([]float64, b.Elements)
	for i := range data {
		data[i] = 1.0
	}

	return &bandwidthRun{data: data}, nil
}

type bandwidthRun struct {
	data []float64
}

func (r *bandwidthRun) Work(_ context.Context, share Share) error {
	part := r.data[share.Offset : share.Offset+share.Count]
	for i := range part {
		part[i] = part[i]*2.5 + 1.2
	}

	return nil
}

func (r *bandwidthRun) Finish() error {
	r.data = nil

	return nil
}
