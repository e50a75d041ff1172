package service

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the console.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	auditQueueDepth prometheus.Gauge
	auditDropped    prometheus.Counter
	auditPersisted  prometheus.Counter
	appsCreated     *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	auditQueueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audit_queue_depth",
		Help: "Events waiting in the audit pipeline queue",
	})

	auditDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_events_dropped_total",
		Help: "Audit events dropped under queue back-pressure",
	})

	auditPersisted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_events_persisted_total",
		Help: "Audit events written to durable storage",
	})

	appsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "applications_created_total",
		Help: "Applications committed through the creation pipeline",
	}, []string{"type"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_transitions_total",
		Help: "Workflow transitions applied, by action",
	}, []string{"action"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, auditQueueDepth, auditDropped, auditPersisted, appsCreated, transitions, dbQueryDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		auditQueueDepth: auditQueueDepth,
		auditDropped:    auditDropped,
		auditPersisted:  auditPersisted,
		appsCreated:     appsCreated,
		transitions:     transitions,
		dbQueryDuration: dbQueryDuration,
	}
}

// Handler exposes the /metrics endpoint handler.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one handled request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": path, "status": httpStatusLabel(status)}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// SetAuditQueueDepth updates the queue depth gauge.
func (s *MetricsService) SetAuditQueueDepth(depth int) {
	s.auditQueueDepth.Set(float64(depth))
}

// RecordAuditDropped counts one event lost to back-pressure.
func (s *MetricsService) RecordAuditDropped() {
	s.auditDropped.Inc()
}

// RecordAuditPersisted counts one durably written audit event.
func (s *MetricsService) RecordAuditPersisted() {
	s.auditPersisted.Inc()
}

// RecordApplicationCreated counts one committed application.
func (s *MetricsService) RecordApplicationCreated(appType string) {
	s.appsCreated.WithLabelValues(appType).Inc()
}

// RecordWorkflowTransition counts one applied transition.
func (s *MetricsService) RecordWorkflowTransition(action string) {
	s.transitions.WithLabelValues(action).Inc()
}

// ObserveDBQuery records the duration of a named query.
func (s *MetricsService) ObserveDBQuery(query string, duration time.Duration) {
	s.dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

func httpStatusLabel(status int) string {
	switch {
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
