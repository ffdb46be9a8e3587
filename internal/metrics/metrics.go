// Package metrics provides Prometheus instrumentation for the hedge engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HedgeRunsTotal counts hedge simulations, partitioned by outcome.
	HedgeRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hedge_runs_total",
		Help: "Total number of hedge simulations executed",
	}, []string{"outcome"})

	// HedgeRunDuration tracks the wall time of successful simulations.
	HedgeRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hedge_run_duration_seconds",
		Help:    "Hedge simulation duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// HedgeOptionsOpened counts protective puts written across all runs.
	HedgeOptionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hedge_options_opened_total",
		Help: "Protective put options opened by simulations",
	})

	// PortfoliosCreated counts portfolios persisted through the API.
	PortfoliosCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hedge_portfolios_created_total",
		Help: "Portfolios created",
	})

	// PriceBarsUpserted counts daily price bars written to the store.
	PriceBarsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hedge_price_bars_upserted_total",
		Help: "Daily price bars upserted",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hedge_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hedge_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hedge_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// StoreQueryDuration tracks persistence call latency per operation.
	StoreQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hedge_store_query_duration_seconds",
		Help:    "Store operation duration in seconds",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	}, []string{"op"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the chi route pattern for the path label; raw paths carry
		// portfolio and run IDs and would blow up cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
