// Package harness times workloads in mono and multi worker modes and
// defines the result and error types shared by every benchmark category.
package harness

import "time"

// Row holds the measurements of one benchmark category.
type Row struct {
	Name     string        `json:"name" yaml:"name"`
	Mono     time.Duration `json:"mono_ns" yaml:"mono"`
	Multi    time.Duration `json:"multi_ns" yaml:"multi"`
	Workers  int           `json:"workers" yaml:"workers"`
	MonoOnly bool          `json:"mono_only,omitempty" yaml:"mono_only,omitempty"`
}

// Speedup returns Mono/Multi, or 0 when either side is missing.
func (r Row) Speedup() float64 {
	if r.MonoOnly || r.Mono <= 0 || r.Multi <= 0 {
		return 0
	}

	return float64(r.Mono) / float64(r.Multi)
}
