package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalTotal       *prometheus.CounterVec
	retrievalDuration    *prometheus.HistogramVec
	retrievalCandidates  *prometheus.HistogramVec
	degradedSourcesTotal *prometheus.CounterVec
	outOfCorpusTotal     *prometheus.CounterVec
	fallbackTotal        *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filings",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "filings",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "filings",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filings",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total completed retrievals by mode and status.",
		},
		[]string{"service", "mode", "status"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "filings",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval pipeline duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
		},
		[]string{"service", "mode"},
	)
	retrievalCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "filings",
			Subsystem: "retrieval",
			Name:      "fused_candidates",
			Help:      "Distribution of fused candidates returned per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "mode"},
	)
	degradedSourcesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filings",
			Subsystem: "retrieval",
			Name:      "degraded_sources_total",
			Help:      "Total retrievals in which a signal source was skipped or failed.",
		},
		[]string{"service", "source"},
	)
	outOfCorpusTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filings",
			Subsystem: "retrieval",
			Name:      "out_of_corpus_total",
			Help:      "Total retrievals flagged as likely outside the indexed corpus.",
		},
		[]string{"service"},
	)
	fallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filings",
			Subsystem: "retrieval",
			Name:      "dense_fallback_total",
			Help:      "Total hybrid requests that fell back to dense-only search.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalTotal,
		retrievalDuration,
		retrievalCandidates,
		degradedSourcesTotal,
		outOfCorpusTotal,
		fallbackTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		retrievalTotal:       retrievalTotal,
		retrievalDuration:    retrievalDuration,
		retrievalCandidates:  retrievalCandidates,
		degradedSourcesTotal: degradedSourcesTotal,
		outOfCorpusTotal:     outOfCorpusTotal,
		fallbackTotal:        fallbackTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordRetrieval(service, mode, status string, candidates int, duration time.Duration) {
	if status == "" {
		status = "ok"
	}
	m.retrievalTotal.WithLabelValues(service, mode, status).Inc()
	m.retrievalDuration.WithLabelValues(service, mode).Observe(duration.Seconds())
	m.retrievalCandidates.WithLabelValues(service, mode).Observe(float64(candidates))
}

func (m *HTTPServerMetrics) RecordDegradedSource(service, source string) {
	if source == "" {
		source = "unknown"
	}
	m.degradedSourcesTotal.WithLabelValues(service, source).Inc()
}

func (m *HTTPServerMetrics) RecordOutOfCorpus(service string) {
	m.outOfCorpusTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordDenseFallback(service string) {
	m.fallbackTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
