package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

const namespace = "ranker"

// WorkerMetrics observes the ingestion pipeline; it satisfies
// usecase.PipelineObserver.
type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	stageDuration   *prometheus.HistogramVec
	stageFailures   *prometheus.CounterVec
	queueLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &WorkerMetrics{
		service:  service,
		registry: registry,
		processTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "resume_process_total",
			Help:      "Total ingestion attempts by resulting status.",
		}, []string{"service", "status"}),
		processDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "resume_process_duration_seconds",
			Help:      "Ingestion attempt duration in seconds by resulting status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "status"}),
		processInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "resume_process_in_flight",
			Help:        "Number of in-flight ingestion attempts.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "resume_stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"service", "stage", "status"}),
		stageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "resume_stage_failures_total",
			Help:      "Pipeline stage failures by stage and error kind.",
		}, []string{"service", "stage", "kind"}),
		queueLag: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between submission and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"service"}),
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartResume() {
	m.processInFlight.Inc()
}

// FinishResume records the status the attempt left the record in; PENDING
// means the attempt was interrupted and requeued.
func (m *WorkerMetrics) FinishResume(duration time.Duration, status domain.ResumeStatus) {
	m.processInFlight.Dec()

	label := "requeued"
	switch status {
	case domain.StatusReady:
		label = "success"
	case domain.StatusFailed:
		label = "error"
	}
	m.processTotal.WithLabelValues(m.service, label).Inc()
	m.processDuration.WithLabelValues(m.service, label).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveStage(stage domain.Stage, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.stageFailures.WithLabelValues(m.service, string(stage), errorKind(err)).Inc()
	}
	m.stageDuration.WithLabelValues(m.service, string(stage), status).Observe(duration.Seconds())
}

var errorKinds = []struct {
	kind  error
	label string
}{
	{domain.ErrTimeout, "timeout"},
	{domain.ErrDimensionMismatch, "dimension_mismatch"},
	{domain.ErrUnsupportedFormat, "unsupported_format"},
	{domain.ErrExtraction, "extraction"},
	{domain.ErrStorage, "storage"},
	{domain.ErrTemporary, "temporary"},
	{domain.ErrNotFound, "not_found"},
}

func errorKind(err error) string {
	for _, k := range errorKinds {
		if domain.IsKind(err, k.kind) {
			return k.label
		}
	}
	return "other"
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}
