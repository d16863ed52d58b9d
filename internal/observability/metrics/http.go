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

	documentsCreatedTotal  *prometheus.CounterVec
	numberConflictsTotal   *prometheus.CounterVec
	statusTransitionsTotal *prometheus.CounterVec
	publicViewsTotal       *prometheus.CounterVec
	notificationsTotal     *prometheus.CounterVec
	exportsTotal           *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "backoffice",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "backoffice",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	documentsCreatedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "documents",
			Name:      "created_total",
			Help:      "Total documents created by kind and origin.",
		},
		[]string{"service", "kind", "origin"},
	)
	numberConflictsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "documents",
			Name:      "number_conflicts_total",
			Help:      "Total numbering races retried during document creation.",
		},
		[]string{"service", "kind"},
	)
	statusTransitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "documents",
			Name:      "status_transitions_total",
			Help:      "Total lifecycle transitions by kind and target status.",
		},
		[]string{"service", "kind", "to"},
	)
	publicViewsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "documents",
			Name:      "public_views_total",
			Help:      "Total public-token document views.",
		},
		[]string{"service", "kind"},
	)
	notificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "notifications",
			Name:      "published_total",
			Help:      "Total lifecycle notifications by publish outcome.",
		},
		[]string{"service", "type", "outcome"},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Subsystem: "exports",
			Name:      "total",
			Help:      "Total document exports by format.",
		},
		[]string{"service", "format"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		documentsCreatedTotal,
		numberConflictsTotal,
		statusTransitionsTotal,
		publicViewsTotal,
		notificationsTotal,
		exportsTotal,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		documentsCreatedTotal:  documentsCreatedTotal,
		numberConflictsTotal:   numberConflictsTotal,
		statusTransitionsTotal: statusTransitionsTotal,
		publicViewsTotal:       publicViewsTotal,
		notificationsTotal:     notificationsTotal,
		exportsTotal:           exportsTotal,
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

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	case strings.HasPrefix(path, "/v1/templates/"):
		return "/v1/templates/{template_id}"
	case strings.HasPrefix(path, "/v1/public/documents/"):
		return "/v1/public/documents/{token}"
	case strings.HasPrefix(path, "/v1/items/"):
		return "/v1/items/{item_id}"
	case strings.HasPrefix(path, "/v1/sections/"):
		return "/v1/sections/{section_id}"
	case strings.HasPrefix(path, "/v1/projects/"):
		return "/v1/projects/{project_id}"
	case strings.HasPrefix(path, "/v1/clients/"):
		return "/v1/clients/{client_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordDocumentCreated(service, kind, origin string) {
	if origin == "" {
		origin = "manual"
	}
	m.documentsCreatedTotal.WithLabelValues(service, kind, origin).Inc()
}

func (m *HTTPServerMetrics) RecordNumberConflict(service, kind string) {
	m.numberConflictsTotal.WithLabelValues(service, kind).Inc()
}

func (m *HTTPServerMetrics) RecordStatusTransition(service, kind, to string) {
	m.statusTransitionsTotal.WithLabelValues(service, kind, to).Inc()
}

func (m *HTTPServerMetrics) RecordPublicView(service, kind string) {
	m.publicViewsTotal.WithLabelValues(service, kind).Inc()
}

func (m *HTTPServerMetrics) RecordNotification(service, eventType, outcome string) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.notificationsTotal.WithLabelValues(service, eventType, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordExport(service, format string) {
	m.exportsTotal.WithLabelValues(service, format).Inc()
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
