package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

const namespace = "merchant_statements"

type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	processTotal     *prometheus.CounterVec
	processDuration  *prometheus.HistogramVec
	processInFlight  prometheus.Gauge
	queueLag         *prometheus.HistogramVec
	extractionTotal  *prometheus.CounterVec
	confidence       *prometheus.HistogramVec
	fallbackTotal    *prometheus.CounterVec
	netAdjustedTotal *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "statement_process_total",
			Help:      "Total processed statements by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "statement_process_duration_seconds",
			Help:      "Statement processing duration in seconds by status.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "statement_process_in_flight",
			Help:      "Number of in-flight statement processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between statement upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	extractionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "total",
			Help:      "Total extractions by processor and outcome.",
		},
		[]string{"service", "processor", "status"},
	)
	confidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "confidence",
			Help:      "Confidence score of completed extractions.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"service", "processor"},
	)
	fallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "fallback_total",
			Help:      "Extractions that used at least one fallback strategy.",
		},
		[]string{"service", "processor"},
	)
	netAdjustedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "netted_total",
			Help:      "Extractions where a negative amount was netted to zero.",
		},
		[]string{"service", "processor"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker for an operation is not closed.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		processTotal,
		processDuration,
		processInFlight,
		queueLag,
		extractionTotal,
		confidence,
		fallbackTotal,
		netAdjustedTotal,
		breakerState,
	)

	return &WorkerMetrics{
		registry:         registry,
		service:          service,
		processTotal:     processTotal,
		processDuration:  processDuration,
		processInFlight:  processInFlight,
		queueLag:         queueLag,
		extractionTotal:  extractionTotal,
		confidence:       confidence,
		fallbackTotal:    fallbackTotal,
		netAdjustedTotal: netAdjustedTotal,
		breakerState:     breakerState,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartStatement() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishStatement(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

// RecordExtraction implements ports.ExtractionRecorder.
func (m *WorkerMetrics) RecordExtraction(result domain.ExtractionResult, completed bool) {
	processor := result.ProcessorName
	if processor == "" {
		processor = domain.UnknownProcessor
	}
	status := "completed"
	if !completed {
		status = "failed"
	}
	m.extractionTotal.WithLabelValues(m.service, processor, status).Inc()
	if !completed {
		return
	}

	score, _ := result.Confidence.Float64()
	m.confidence.WithLabelValues(m.service, processor).Observe(score)
	if result.Diagnostics.Has(domain.DiagnosticFallback) {
		m.fallbackTotal.WithLabelValues(m.service, processor).Inc()
	}
	if result.Diagnostics.Has(domain.DiagnosticNetted) {
		m.netAdjustedTotal.WithLabelValues(m.service, processor).Inc()
	}
}

// ObserveBreakerState matches resilience.StateListener.
func (m *WorkerMetrics) ObserveBreakerState(operation, _, to string) {
	open := 0.0
	if to != "closed" {
		open = 1
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(open)
}
