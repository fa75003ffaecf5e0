package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for verification runs. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Verifications  *prometheus.CounterVec
	TargetResults  *prometheus.CounterVec
	TargetDuration *prometheus.HistogramVec
	Transitions    *prometheus.CounterVec
	InFlight       prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provify",
			Name:      "verifications_total",
			Help:      "Verification runs by intent and outcome.",
		}, []string{"intent", "outcome"}),
		TargetResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provify",
			Name:      "target_results_total",
			Help:      "Per-target results by outcome (reproduced, not_reproduced, or failure kind).",
		}, []string{"outcome"}),
		TargetDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "provify",
			Name:      "target_duration_seconds",
			Help:      "Wall time of one bug on one target.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"target"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provify",
			Name:      "status_transitions_total",
			Help:      "Bug status transitions applied by verdicts.",
		}, []string{"kind"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "provify",
			Name:      "verifications_in_flight",
			Help:      "Bugs currently being verified.",
		}),
	}
	reg.MustRegister(m.Verifications, m.TargetResults, m.TargetDuration, m.Transitions, m.InFlight)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveVerification(intent, outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(intent, outcome).Inc()
}

func (m *Metrics) ObserveTarget(target, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TargetResults.WithLabelValues(outcome).Inc()
	m.TargetDuration.WithLabelValues(target).Observe(d.Seconds())
}

func (m *Metrics) ObserveTransition(kind string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(kind).Inc()
}

func (m *Metrics) AddInFlight(delta float64) {
	if m == nil {
		return
	}
	m.InFlight.Add(delta)
}
