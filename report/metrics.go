package report

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile stores the report at path in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func WriteTextfile(path string, rep Report) error {
	reg := prometheus.NewRegistry()

	durations := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "machbench",
		Name:      "duration_seconds",
		Help:      "Elapsed time of one benchmark category per mode.",
	}, []string{"benchmark", "mode", "run_id"})

	workers := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "machbench",
		Name:      "workers",
		Help:      "Worker count used for multi mode.",
	})

	reg.MustRegister(durations, workers)

	workers.Set(float64(rep.Workers))

	for _, r := range rep.Rows {
		durations.WithLabelValues(r.Name, "mono", rep.RunID).Set(r.Mono.Seconds())

		if !r.MonoOnly {
			durations.WithLabelValues(r.Name, "multi", rep.RunID).Set(r.Multi.Seconds())
		}
	}

	return prometheus.WriteToTextfile(path, reg)
}
