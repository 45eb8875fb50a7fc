package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/usecase"
)

// PipelineMetrics observes inference, aggregation, advice generation and the
// resilience executor. It satisfies the observer interfaces of the usecases.
type PipelineMetrics struct {
	service string

	imagesTotal        *prometheus.CounterVec
	inferenceDuration  *prometheus.HistogramVec
	analysesTotal      *prometheus.CounterVec
	adviceTotal        *prometheus.CounterVec
	adviceDuration     *prometheus.HistogramVec
	retriesTotal       *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		service: service,
		imagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "inference",
				Name:      "images_total",
				Help:      "Analyzed images by outcome and plausibility rule.",
			},
			[]string{"service", "classifier", "outcome", "rule"},
		),
		inferenceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "inference",
				Name:      "duration_seconds",
				Help:      "Single image preprocessing and inference duration in seconds.",
				Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"service", "classifier"},
		),
		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "analysis",
				Name:      "total",
				Help:      "Submitted analyses by result status.",
			},
			[]string{"service", "status"},
		),
		adviceTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "advice",
				Name:      "generated_total",
				Help:      "Generated advice by source.",
			},
			[]string{"service", "source"},
		),
		adviceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "advice",
				Name:      "duration_seconds",
				Help:      "Advice generation duration in seconds by source.",
				Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"service", "source"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resilience",
				Name:      "retries_total",
				Help:      "Retried calls by operation.",
			},
			[]string{"service", "operation"},
		),
		breakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resilience",
				Name:      "breaker_transitions_total",
				Help:      "Circuit breaker transitions by target state.",
			},
			[]string{"service", "operation", "state"},
		),
	}

	registerer.MustRegister(
		m.imagesTotal,
		m.inferenceDuration,
		m.analysesTotal,
		m.adviceTotal,
		m.adviceDuration,
		m.retriesTotal,
		m.breakerTransitions,
	)
	return m
}

func (m *PipelineMetrics) ObserveImage(classifier string, outcome usecase.ImageOutcome, rule string, duration time.Duration) {
	if rule == "" {
		rule = "none"
	}
	m.imagesTotal.WithLabelValues(m.service, classifier, string(outcome), rule).Inc()
	m.inferenceDuration.WithLabelValues(m.service, classifier).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveAnalysis(status string) {
	m.analysesTotal.WithLabelValues(m.service, status).Inc()
}

func (m *PipelineMetrics) ObserveAdvice(source string, duration time.Duration) {
	m.adviceTotal.WithLabelValues(m.service, source).Inc()
	m.adviceDuration.WithLabelValues(m.service, source).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveRetry(operation string) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *PipelineMetrics) ObserveBreakerState(operation, state string) {
	m.breakerTransitions.WithLabelValues(m.service, operation, state).Inc()
}
