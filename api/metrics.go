package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/expense-ledger/ledger"
)

// =============================================================================
// METRICS
// =============================================================================

// Metrics holds the server's collectors on a private registry, so several
// servers (or tests) can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	mutations *prometheus.CounterVec
	imports   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_mutations_total",
			Help: "Successful ledger mutations by section and operation.",
		}, []string{"section", "op"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_import_rows_total",
			Help: "Imported rows by outcome (added, skipped, invalid).",
		}, []string{"section", "outcome"}),
	}
	m.registry.MustRegister(
		m.requests, m.latency, m.mutations, m.imports,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Mutation(section ledger.Section, op string) {
	m.mutations.WithLabelValues(string(section), op).Inc()
}

func (m *Metrics) ImportRows(section ledger.Section, outcome string, n int) {
	if n > 0 {
		m.imports.WithLabelValues(string(section), outcome).Add(float64(n))
	}
}

// =============================================================================
// REQUEST LOGGING + INSTRUMENTATION MIDDLEWARE
// =============================================================================

// RequestLogger logs every request through slog and records it in m.
// The route label is chi's pattern, not the raw path, to bound cardinality.
func RequestLogger(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			m.latency.WithLabelValues(r.Method, route).Observe(duration.Seconds())

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", duration,
				"request_id", middleware.GetReqID(r.Context()),
			}
			switch {
			case status >= 500:
				slog.Error("request failed", attrs...)
			case status >= 400:
				slog.Warn("request rejected", attrs...)
			default:
				slog.Info("request", attrs...)
			}
		})
	}
}
