package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event outcomes reported by the worker.
const (
	EventGenerated = "generated"
	EventSkipped   = "skipped"
	EventFailed    = "failed"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	labels := prometheus.Labels{"service": service}

	m := &WorkerMetrics{
		registry: registry,
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "events_total",
			Help:        "analysis.completed events by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "event_duration_seconds",
			Help:        "Time spent handling one event, by outcome.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.05, 2.5, 9),
		}, []string{"outcome"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "events_in_flight",
			Help:        "Events currently being handled.",
			ConstLabels: labels,
		}),
	}
	for _, outcome := range []string{EventGenerated, EventSkipped, EventFailed} {
		m.events.WithLabelValues(outcome)
	}
	return m
}

func (m *WorkerMetrics) Registerer() prometheus.Registerer {
	return m.registry
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Track marks an event as in flight. The returned func records its outcome.
func (m *WorkerMetrics) Track() func(outcome string) {
	start := time.Now()
	m.inFlight.Inc()
	return func(outcome string) {
		m.inFlight.Dec()
		m.events.WithLabelValues(outcome).Inc()
		m.duration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}
}
