// Package telemetry turns engine samples into Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"inferbridge/internal/engine"
)

const namespace = "inferbridge"

// Metrics implements engine.Observer.
type Metrics struct {
	loadsTotal         *prometheus.CounterVec
	loadDuration       *prometheus.HistogramVec
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	firstToken         *prometheus.HistogramVec
	fragmentsTotal     *prometheus.CounterVec
	inflight           *prometheus.GaugeVec
}

var _ engine.Observer = (*Metrics)(nil)

// New creates the collectors and registers them with reg. A nil reg uses
// the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		loadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "model",
				Name:      "loads_total",
				Help:      "Model loads by outcome",
			},
			[]string{"engine", "outcome"},
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "model",
				Name:      "load_duration_seconds",
				Help:      "Duration of model loads in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"engine"},
		),
		generationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "total",
				Help:      "Finished generations by kind and finish reason",
			},
			[]string{"engine", "kind", "reason"},
		),
		generationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "Wall time of generation calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"engine", "kind"},
		),
		firstToken: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "first_fragment_seconds",
				Help:      "Latency from call start to the first emitted fragment",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"engine", "kind"},
		),
		fragmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "fragments_total",
				Help:      "Text fragments delivered to callbacks",
			},
			[]string{"engine", "kind"},
		),
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "inflight",
				Help:      "Generation calls in progress, including those waiting for the model",
			},
			[]string{"engine"},
		),
	}
	reg.MustRegister(m.loadsTotal, m.loadDuration, m.generationsTotal, m.generationDuration, m.firstToken, m.fragmentsTotal, m.inflight)
	return m
}

func (m *Metrics) LoadFinished(s engine.LoadSample) {
	outcome := "ok"
	if s.Err != nil {
		outcome = "error"
	}
	m.loadsTotal.WithLabelValues(s.Engine, outcome).Inc()
	m.loadDuration.WithLabelValues(s.Engine).Observe(s.Duration.Seconds())
}

func (m *Metrics) GenerationStarted(s engine.GenerationStart) {
	m.inflight.WithLabelValues(s.Engine).Inc()
}

func (m *Metrics) GenerationFinished(s engine.GenerationSample) {
	m.inflight.WithLabelValues(s.Engine).Dec()
	m.generationsTotal.WithLabelValues(s.Engine, s.Kind, string(s.Reason)).Inc()
	m.generationDuration.WithLabelValues(s.Engine, s.Kind).Observe(s.Duration.Seconds())
	if s.Fragments > 0 {
		m.fragmentsTotal.WithLabelValues(s.Engine, s.Kind).Add(float64(s.Fragments))
		m.firstToken.WithLabelValues(s.Engine, s.Kind).Observe(s.FirstToken.Seconds())
	}
}
