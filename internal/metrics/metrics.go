// Package metrics provides Prometheus instrumentation for cachedb.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CommandsEnqueued counts commands admitted to the write-behind queue, by kind.
	CommandsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachedb_commands_enqueued_total",
		Help: "Commands admitted to the write-behind queue",
	}, []string{"kind"})

	// CommandsPersisted counts commands applied to the store, by kind.
	CommandsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachedb_commands_persisted_total",
		Help: "Commands successfully applied to the store",
	}, []string{"kind"})

	// WriteFailures counts failed write attempts, including retried ones.
	WriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachedb_write_failures_total",
		Help: "Failed write attempts",
	}, []string{"kind"})

	// DeadLetters counts commands abandoned after exhausting retries.
	DeadLetters = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachedb_dead_letters_total",
		Help: "Commands routed to the dead-letter table",
	}, []string{"kind"})

	// SessionDialFailures counts failed attempts to open the write session.
	SessionDialFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cachedb_session_dial_failures_total",
		Help: "Failed attempts to open the write session",
	})

	// QueueDepth tracks commands waiting in the queue channel.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cachedb_queue_depth",
		Help: "Commands waiting in the write-behind queue",
	})

	// BufferedCommands tracks commands received by the worker but not yet flushed.
	BufferedCommands = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cachedb_buffered_commands",
		Help: "Commands buffered by the worker awaiting flush",
	})

	// FlushDuration tracks how long a full buffer flush takes.
	FlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cachedb_flush_duration_seconds",
		Help:    "Buffer flush duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
	})

	// FlushSize tracks commands per flush.
	FlushSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cachedb_flush_size",
		Help:    "Commands applied per flush",
		Buckets: prometheus.ExponentialBuckets(1, 2, 11),
	})

	// ReadLatency tracks read-path latency by operation.
	ReadLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cachedb_read_latency_seconds",
		Help:    "Read path latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// NotifyClients tracks connected WebSocket subscribers.
	NotifyClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cachedb_notify_clients",
		Help: "Number of connected WebSocket subscribers",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachedb_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cachedb_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// ObserveRead records the latency of a read-path call started at start.
func ObserveRead(op string, start time.Time) {
	ReadLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

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

		path := r.URL.Path
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

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
