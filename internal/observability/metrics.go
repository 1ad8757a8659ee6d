package observability

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	syncTotal       *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	checkouts       prometheus.Counter
	checkoutRevenue prometheus.Counter
	persistFailures *prometheus.CounterVec
}

// NewMetrics initialises the registry and the service metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wholesale_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wholesale_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	syncTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wholesale_remote_sync_total",
		Help: "Remote sync calls by action and outcome.",
	}, []string{"action", "outcome"})
	syncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wholesale_remote_sync_duration_seconds",
		Help:    "Remote sync call duration by action.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"action"})
	checkouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wholesale_checkouts_total",
		Help: "Completed checkouts.",
	})
	revenue := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wholesale_checkout_revenue_total",
		Help: "Sum of completed sale totals.",
	})
	persist := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wholesale_persist_failures_total",
		Help: "Failed writes to the state store by document.",
	}, []string{"document"})
	registry.MustRegister(requests, duration, syncTotal, syncDuration, checkouts, revenue, persist)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		syncTotal:       syncTotal,
		syncDuration:    syncDuration,
		checkouts:       checkouts,
		checkoutRevenue: revenue,
		persistFailures: persist,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route.
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

// RecordSync counts a remote sync call.
func (m *Metrics) RecordSync(action, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.syncTotal.WithLabelValues(action, outcome).Inc()
	m.syncDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// RecordCheckout counts a completed sale.
func (m *Metrics) RecordCheckout(total float64) {
	if m == nil {
		return
	}
	m.checkouts.Inc()
	m.checkoutRevenue.Add(total)
}

// RecordPersistFailure counts a failed state write.
func (m *Metrics) RecordPersistFailure(document string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(document).Inc()
}

// Registerer exposes the registry for custom collectors.
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

// Hijack lets websocket upgrades pass through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("observability: response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
