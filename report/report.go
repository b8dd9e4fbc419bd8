// Package report formats benchmark results into comparison tables and
// machine-readable exports.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/weiihann/machbench/harness"
)

// Report is one complete suite run.
type Report struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	Dir       string        `json:"dir" yaml:"dir"`
	Workers   int           `json:"workers" yaml:"workers"`
	FileSize  int64         `json:"io_file_size" yaml:"io_file_size"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Rows      []harness.Row `json:"results" yaml:"results"`
}

// Generate writes a markdown comparison table for the given report.
func Generate(w io.Writer, rep Report) error {
	if len(rep.Rows) == 0 {
		return fmt.Errorf("no results to report")
	}

	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run `%s`: %d workers, target `%s`, I/O file %s\n",
		rep.RunID, rep.Workers, rep.Dir, formatBytes(rep.FileSize))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "| Benchmark | Mono | Multi | Speedup |")
	fmt.Fprintln(w, "|-----------|------|-------|---------|")

	for _, r := range rep.Rows {
		multi := "-"
		speedup := "-"

		if !r.MonoOnly {
			multi = formatDuration(r.Multi)
			speedup = fmt.Sprintf("%.2fx", r.Speedup())
		}

		fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
			r.Name,
			formatDuration(r.Mono),
			multi,
			speedup,
		)
	}

	return nil
}

// GenerateJSON writes the report as JSON to w.
func GenerateJSON(w io.Writer, rep Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(rep)
}

// GenerateYAML writes the report as YAML to w.
func GenerateYAML(w io.Writer, rep Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(rep); err != nil {
		return err
	}

	return enc.Close()
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

func formatBytes(b int64) string {
	if b <= 0 {
		return "-"
	}

	return humanize.IBytes(uint64(b))
}
