// Package metrics exposes proctoring activity to Prometheus.
//
// All methods are safe on a nil *Metrics, so components take metrics as an
// optional dependency.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "proctor"

// Metrics holds all application metrics.
type Metrics struct {
	// Mirrors of values owned elsewhere, read by GaugeFuncs
	suspicionCount atomic.Int64
	baselineMicros atomic.Int64 // audio baseline RMS x 1e6
	visualRunning  atomic.Bool
	audioRunning   atomic.Bool

	events         *prometheus.CounterVec
	verdicts       *prometheus.CounterVec
	captureErrors  *prometheus.CounterVec
	artifactErrors *prometheus.CounterVec
	counterErrors  prometheus.Counter
	restarts       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Emitted events by modality and type",
		}, []string{"modality", "type"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Classified samples by modality and verdict",
		}, []string{"modality", "verdict"}),
		captureErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Sensor capture failures",
		}, []string{"modality"}),
		artifactErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_write_errors_total",
			Help:      "Artifacts that could not be written",
		}, []string{"modality"}),
		counterErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_errors_total",
			Help:      "Failed suspicion counter updates",
		}),
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_starts_total",
			Help:      "Monitor starts by modality",
		}, []string{"modality"}),
	}

	m.registry.MustRegister(m.events, m.verdicts, m.captureErrors, m.artifactErrors, m.counterErrors, m.restarts)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "suspicion_count",
			Help:      "Current suspicion counter value",
		},
		func() float64 { return float64(m.suspicionCount.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audio_baseline_rms",
			Help:      "Ambient RMS measured by the last audio calibration",
		},
		func() float64 { return float64(m.baselineMicros.Load()) / 1e6 },
	))

	for modality, flag := range map[string]*atomic.Bool{"visual": &m.visualRunning, "audio": &m.audioRunning} {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "monitor_running",
				Help:        "1 while the monitor loop is alive",
				ConstLabels: prometheus.Labels{"modality": modality},
			},
			func() float64 {
				if flag.Load() {
					return 1
				}
				return 0
			},
		))
	}

	return m
}

// Event counts an emitted event.
func (m *Metrics) Event(modality, eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(modality, eventType).Inc()
}

// Verdict counts a classified sample.
func (m *Metrics) Verdict(modality, verdict string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(modality, verdict).Inc()
}

// CaptureError counts a failed sensor read.
func (m *Metrics) CaptureError(modality string) {
	if m == nil {
		return
	}
	m.captureErrors.WithLabelValues(modality).Inc()
}

// ArtifactError counts a failed artifact write.
func (m *Metrics) ArtifactError(modality string) {
	if m == nil {
		return
	}
	m.artifactErrors.WithLabelValues(modality).Inc()
}

// CounterError counts a failed counter update.
func (m *Metrics) CounterError() {
	if m == nil {
		return
	}
	m.counterErrors.Inc()
}

// Started counts a monitor start.
func (m *Metrics) Started(modality string) {
	if m == nil {
		return
	}
	m.restarts.WithLabelValues(modality).Inc()
}

// SetCount mirrors the suspicion counter.
func (m *Metrics) SetCount(n int) {
	if m == nil {
		return
	}
	m.suspicionCount.Store(int64(n))
}

// SetBaseline records the calibrated audio baseline.
func (m *Metrics) SetBaseline(rms float64) {
	if m == nil {
		return
	}
	m.baselineMicros.Store(int64(rms * 1e6))
}

// SetRunning records whether a monitor loop is alive.
func (m *Metrics) SetRunning(modality string, running bool) {
	if m == nil {
		return
	}
	switch modality {
	case "visual":
		m.visualRunning.Store(running)
	case "audio":
		m.audioRunning.Store(running)
	}
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
