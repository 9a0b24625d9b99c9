package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchRequestsTotal *prometheus.CounterVec
	searchHitTotal      *prometheus.CounterVec
	searchNoHitTotal    *prometheus.CounterVec
	searchChunks        *prometheus.HistogramVec
	searchDuration      *prometheus.HistogramVec

	generateTotal    *prometheus.CounterVec
	generateDuration *prometheus.HistogramVec
	pendingSections  *prometheus.HistogramVec
	reportCitations  *prometheus.HistogramVec
	exportTotal      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportgen",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reportgen",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "reportgen",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportgen",
			Subsystem: "retrieval",
			Name:      "search_requests_total",
			Help:      "Total successful similarity search requests.",
		},
		[]string{"service"},
	)
	searchHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportgen",
			Subsystem: "retrieval",
			Name:      "hit_total",
			Help:      "Total search requests with at least one retrieved chunk.",
		},
		[]string{"service"},
	)
	searchNoHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportgen",
			Subsystem: "retrieval",
			Name:      "no_context_total",
			Help:      "Total search requests that retrieved nothing.",
		},
		[]string{"service"},
	)
	searchChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reportgen",
			Subsystem: "retrieval",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved chunks per successful search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reportgen",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Similarity search duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	generateTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportgen",
			Subsystem: "report",
			Name:      "generate_total",
			Help:      "Total report generation runs by status.",
		},
		[]string{"service", "status"},
	)
	generateDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reportgen",
			Subsystem: "report",
			Name:      "generate_duration_seconds",
			Help:      "Report generation duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	pendingSections := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reportgen",
			Subsystem: "report",
			Name:      "pending_sections",
			Help:      "Distribution of sections left pending per generated report.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 7},
		},
		[]string{"service"},
	)
	reportCitations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reportgen",
			Subsystem: "report",
			Name:      "citations",
			Help:      "Distribution of citations per generated report.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"service"},
	)
	exportTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportgen",
			Subsystem: "report",
			Name:      "export_total",
			Help:      "Total report exports by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchRequestsTotal,
		searchHitTotal,
		searchNoHitTotal,
		searchChunks,
		searchDuration,
		generateTotal,
		generateDuration,
		pendingSections,
		reportCitations,
		exportTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		searchRequestsTotal: searchRequestsTotal,
		searchHitTotal:      searchHitTotal,
		searchNoHitTotal:    searchNoHitTotal,
		searchChunks:        searchChunks,
		searchDuration:      searchDuration,
		generateTotal:       generateTotal,
		generateDuration:    generateDuration,
		pendingSections:     pendingSections,
		reportCitations:     reportCitations,
		exportTotal:         exportTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
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

// normalizePath collapses per-resource path segments so the path label
// stays low-cardinality.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/v1/projects/") {
		return path
	}
	rest := strings.TrimPrefix(path, "/v1/projects/")
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		return "/v1/projects/{project_id}"
	case 2:
		return "/v1/projects/{project_id}/" + parts[1]
	case 3:
		return "/v1/projects/{project_id}/" + parts[1] + "/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSearch(service string, hitCount int, duration time.Duration) {
	m.searchRequestsTotal.WithLabelValues(service).Inc()
	m.searchChunks.WithLabelValues(service).Observe(float64(hitCount))
	m.searchDuration.WithLabelValues(service).Observe(duration.Seconds())

	if hitCount > 0 {
		m.searchHitTotal.WithLabelValues(service).Inc()
		return
	}
	m.searchNoHitTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordGeneration(service string, duration time.Duration, pendingSections, citations int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.generateTotal.WithLabelValues(service, status).Inc()
	m.generateDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if err != nil {
		return
	}
	m.pendingSections.WithLabelValues(service).Observe(float64(pendingSections))
	m.reportCitations.WithLabelValues(service).Observe(float64(citations))
}

func (m *HTTPServerMetrics) RecordExport(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.exportTotal.WithLabelValues(service, status).Inc()
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
