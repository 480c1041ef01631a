package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	rankingRequestsTotal *prometheus.CounterVec
	rankingCandidates    *prometheus.HistogramVec
	rankingDuration      *prometheus.HistogramVec
	rankingEmptyTotal    *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	sourceLabels := []string{"service", "source"}

	return &HTTPServerMetrics{
		service:  service,
		registry: registry,
		requestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed, by matched route.",
		}, []string{"service", "method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method", "path"}),
		responseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response body size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 8),
		}, []string{"service", "path"}),
		requestInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		rankingRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "requests_total",
			Help:      "Total completed ranking requests by job source.",
		}, sourceLabels),
		rankingCandidates: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "returned_candidates",
			Help:      "Distribution of candidates returned per ranking.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}, sourceLabels),
		rankingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "duration_seconds",
			Help:      "Ranking duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, sourceLabels),
		rankingEmptyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "empty_total",
			Help:      "Total rankings that returned no candidates.",
		}, sourceLabels),
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware labels requests with the mux pattern that served them, read after
// the handler ran. Requests no route matched share the "unmatched" label so
// arbitrary paths cannot grow the label set.
func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		route := routeLabel(r.Pattern)
		m.requestTotal.WithLabelValues(m.service, r.Method, route, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, route).Observe(time.Since(start).Seconds())
		m.responseSize.WithLabelValues(m.service, route).Observe(float64(recorder.bytes))
	})
}

// routeLabel strips the method from a "GET /v1/resumes/{id}" pattern.
func routeLabel(pattern string) string {
	if pattern == "" {
		return "unmatched"
	}
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}

// ObserveRanking satisfies usecase.MatchObserver.
func (m *HTTPServerMetrics) ObserveRanking(source string, candidates int, duration time.Duration) {
	if source == "" {
		source = "unknown"
	}
	m.rankingRequestsTotal.WithLabelValues(m.service, source).Inc()
	m.rankingCandidates.WithLabelValues(m.service, source).Observe(float64(candidates))
	m.rankingDuration.WithLabelValues(m.service, source).Observe(duration.Seconds())
	if candidates == 0 {
		m.rankingEmptyTotal.WithLabelValues(m.service, source).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
