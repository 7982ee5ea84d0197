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

	verificationsTotal *prometheus.CounterVec
	reversalsTotal     *prometheus.CounterVec
	batchOutcomes      *prometheus.CounterVec
}

// NewMetrics initialises the registry with the base HTTP metrics plus the
// settlement counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tallyline_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tallyline_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tallyline_verifications_total",
		Help: "Applied verifications by type (manual or auto).",
	}, []string{"type"})
	reversals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tallyline_reversals_total",
		Help: "Reversed verifications, split by cross-month approval.",
	}, []string{"cross_month"})
	batches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tallyline_batch_verification_items_total",
		Help: "Batch verification items by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, verifications, reversals, batches)
	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:      requests,
		requestDuration:    duration,
		verificationsTotal: verifications,
		reversalsTotal:     reversals,
		batchOutcomes:      batches,
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

// RecordVerification counts one applied verification.
func (m *Metrics) RecordVerification(kind string) {
	if m == nil {
		return
	}
	m.verificationsTotal.WithLabelValues(kind).Inc()
}

// RecordReversal counts one reversal.
func (m *Metrics) RecordReversal(crossMonth bool) {
	if m == nil {
		return
	}
	m.reversalsTotal.WithLabelValues(strconv.FormatBool(crossMonth)).Inc()
}

// RecordBatchVerification counts the outcomes of a batch run.
func (m *Metrics) RecordBatchVerification(success, failed int) {
	if m == nil {
		return
	}
	m.batchOutcomes.WithLabelValues("success").Add(float64(success))
	m.batchOutcomes.WithLabelValues("failed").Add(float64(failed))
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
