package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	reportsGenerated  *prometheus.CounterVec
	rowsSkipped       prometheus.Counter
	recordsDropped    prometheus.Counter
	completionsMarked prometheus.Counter
	completionChecks  *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gantry_http_requests_total",
		Help: "Number of HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gantry_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gantry_reconcile_reports_total",
		Help: "Stock reconciliation reports generated, by scope.",
	}, []string{"scope"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gantry_reconcile_rows_skipped_total",
		Help: "Raw activity rows dropped during normalization.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gantry_reconcile_records_dropped_total",
		Help: "Normalized records dropped during aggregation.",
	})
	completions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gantry_reconcile_completions_marked_total",
		Help: "Orders transitioned to completed.",
	})
	checks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gantry_reconcile_completion_checks_total",
		Help: "Completion evaluations by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, reports, skipped, dropped, completions, checks)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		reportsGenerated:  reports,
		rowsSkipped:       skipped,
		recordsDropped:    dropped,
		completionsMarked: completions,
		completionChecks:  checks,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ReportGenerated counts one generated report for the scope.
func (m *Metrics) ReportGenerated(scope string) {
	if m == nil {
		return
	}
	m.reportsGenerated.WithLabelValues(scope).Inc()
}

// RowsSkipped counts malformed raw rows dropped by the normalizer.
func (m *Metrics) RowsSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsSkipped.Add(float64(n))
}

// RecordsDropped counts records the aggregator could not resolve to a line.
func (m *Metrics) RecordsDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsDropped.Add(float64(n))
}

// CompletionMarked counts one order transitioned to completed.
func (m *Metrics) CompletionMarked() {
	if m == nil {
		return
	}
	m.completionsMarked.Inc()
}

// CompletionCheck counts one evaluation by outcome ("complete", "open").
func (m *Metrics) CompletionCheck(outcome string) {
	if m == nil {
		return
	}
	m.completionChecks.WithLabelValues(outcome).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
