// Package metrics exports the outcome of an update run as a Prometheus
// node-exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blackwell-systems/swupdate/internal/router"
)

const namespace = "swupdate"

// Metrics holds the gauges for one run.
type Metrics struct {
	registry *prometheus.Registry

	familySuccess  *prometheus.GaugeVec
	familyExitCode *prometheus.GaugeVec
	familyDuration *prometheus.GaugeVec
	familyOutcome  *prometheus.GaugeVec

	lastRun      prometheus.Gauge
	lastDuration prometheus.Gauge
	failed       prometheus.Gauge
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		familySuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "family_success",
				Help:      "1 if the family's last update succeeded or was skipped, 0 otherwise",
			},
			[]string{"label", "family"},
		),
		familyExitCode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "family_exit_code",
				Help:      "Exit code of the family's update program, -1 when nothing ran",
			},
			[]string{"label", "family"},
		),
		familyDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "family_duration_seconds",
				Help:      "Time spent updating the family",
			},
			[]string{"label", "family"},
		),
		familyOutcome: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "family_outcome",
				Help:      "Set to 1 for the family's outcome",
			},
			[]string{"label", "family", "outcome"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last update run finished",
		}),
		lastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last update run",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_failed_families",
			Help:      "Number of families that did not succeed in the last run",
		}),
	}

	m.registry.MustRegister(
		m.familySuccess,
		m.familyExitCode,
		m.familyDuration,
		m.familyOutcome,
		m.lastRun,
		m.lastDuration,
		m.failed,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records the reports of a run that started at start and finished
// at end.
func (m *Metrics) Observe(reports []router.Report, start, end time.Time) {
	for _, r := range reports {
		family := string(r.Family)

		success := 0.0
		if r.OK() {
			success = 1
		}
		m.familySuccess.WithLabelValues(r.Label, family).Set(success)
		m.familyExitCode.WithLabelValues(r.Label, family).Set(float64(r.ExitCode()))
		m.familyDuration.WithLabelValues(r.Label, family).Set(r.Duration.Seconds())
		m.familyOutcome.WithLabelValues(r.Label, family, string(r.Outcome)).Set(1)
	}

	m.lastRun.Set(float64(end.Unix()))
	m.lastDuration.Set(end.Sub(start).Seconds())
	m.failed.Set(float64(router.Summarize(reports).Failed))
}

// WriteTextfile writes the metrics to path atomically, creating the parent
// directory if needed.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
