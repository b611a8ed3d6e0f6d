// Package metrics provides Prometheus instrumentation for the league engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransactionsTotal counts executed transactions by ledger type.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "league_transactions_total",
		Help: "Total number of roster transactions executed",
	}, []string{"type"})

	// TransactionRejections counts failed actions by action and error kind.
	TransactionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "league_transaction_rejections_total",
		Help: "Actions rejected by the transaction engine",
	}, []string{"action", "kind"})

	// UndoTotal counts undone transactions by ledger type.
	UndoTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "league_transactions_undone_total",
		Help: "Total number of transactions undone",
	}, []string{"type"})

	// ExecuteLatency tracks the time spent inside one engine action.
	ExecuteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "league_execute_latency_seconds",
		Help:    "Transaction engine action latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	// LimitRejections counts actions refused because the seasonal cap is spent.
	LimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "league_limit_rejections_total",
		Help: "Transactions rejected by the seasonal limit",
	}, []string{"category"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "league_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "league_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "league_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, routePattern(r), strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, routePattern(r)).Observe(duration)
	})
}

// routePattern returns the matched chi pattern so ids stay out of labels.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
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

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
