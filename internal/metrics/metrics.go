// Package metrics records pipeline outcomes as Prometheus metrics. Runs are
// batch jobs, so the registry is exported to a node_exporter textfile rather
// than served.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the techpulse metrics on its own registry.
type Recorder struct {
	registry      *prometheus.Registry
	alertsFired   *prometheus.CounterVec
	alertsSkipped *prometheus.CounterVec
	daysProcessed *prometheus.CounterVec
	signals       *prometheus.GaugeVec
	lastRun       *prometheus.GaugeVec
	duration      *prometheus.HistogramVec
}

// New creates a recorder with a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		alertsFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "techpulse_alerts_fired_total",
				Help: "Alerts emitted by the weekly detector",
			},
			[]string{"alert_type", "severity"},
		),
		alertsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "techpulse_alerts_dismissed_total",
				Help: "Fired alerts hidden from the report because they were dismissed",
			},
			[]string{"alert_type"},
		),
		daysProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "techpulse_days_processed_total",
				Help: "Daily cluster files handled by the signal tracker",
			},
			[]string{"result"},
		),
		signals: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "techpulse_signals",
				Help: "Tracked signals by lifecycle status",
			},
			[]string{"status"},
		),
		lastRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "techpulse_last_run_timestamp_seconds",
				Help: "Unix time of the last completed run",
			},
			[]string{"pipeline"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "techpulse_run_duration_seconds",
				Help:    "Duration of pipeline runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pipeline"},
		),
	}
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordAlert counts one fired alert.
func (r *Recorder) RecordAlert(alertType, severity string) {
	r.alertsFired.WithLabelValues(alertType, severity).Inc()
}

// RecordDismissed counts one fired alert left out of the report.
func (r *Recorder) RecordDismissed(alertType string) {
	r.alertsSkipped.WithLabelValues(alertType).Inc()
}

// RecordDay counts one daily file; result is "processed" or "skipped".
func (r *Recorder) RecordDay(result string) {
	r.daysProcessed.WithLabelValues(result).Inc()
}

// SetSignals replaces the per-status signal gauges.
func (r *Recorder) SetSignals(byStatus map[string]int) {
	r.signals.Reset()
	for status, n := range byStatus {
		r.signals.WithLabelValues(status).Set(float64(n))
	}
}

// RecordRun records a completed run's duration and completion time.
func (r *Recorder) RecordRun(pipeline string, seconds float64, finishedUnix int64) {
	r.duration.WithLabelValues(pipeline).Observe(seconds)
	r.lastRun.WithLabelValues(pipeline).Set(float64(finishedUnix))
}

// WriteTextfile writes the registry in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
