// Package metrics handles Prometheus metrics collection and exposition.
package metrics

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/castellan/gembridge/internal/errors"
)

// Collector holds all prometheus metrics for gembridge
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration prometheus.Histogram

	RateLimitRejections prometheus.Counter
}

// NewCollector creates a new metrics collector with all required metrics
func NewCollector() *Collector {
	return &Collector{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gembridge_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gembridge_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gembridge_upstream_requests_total",
				Help: "Total number of outbound AI service calls",
			},
			[]string{"status"},
		),
		UpstreamRequestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gembridge_upstream_request_duration_seconds",
				Help:    "Outbound AI service call duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		RateLimitRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gembridge_ratelimit_rejections_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}
}

// Register registers all metrics with the provided registry
func (c *Collector) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.RequestsTotal,
		c.RequestDuration,
		c.UpstreamRequestsTotal,
		c.UpstreamRequestDuration,
		c.RateLimitRejections,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return errors.WrapInternal(err, "failed to register collector")
		}
	}

	return nil
}

// RecordUpstream records one outbound AI service call
func (c *Collector) RecordUpstream(success bool, duration time.Duration) {
	status := "ok"
	if !success {
		status = "error"
	}
	c.UpstreamRequestsTotal.WithLabelValues(status).Inc()
	c.UpstreamRequestDuration.Observe(duration.Seconds())
}

// RecordRateLimitRejection records one rejected request
func (c *Collector) RecordRateLimitRejection() {
	c.RateLimitRejections.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// knownRoutes bounds the route label cardinality.
var knownRoutes = map[string]struct{}{
	"/":            {},
	"/healthz":     {},
	"/test":        {},
	"/gemini-test": {},
}

// routeLabel maps a request path to a bounded metric label
func routeLabel(path string) string {
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	return "other"
}

// Middleware returns HTTP middleware that records metrics for requests
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		defer func() {
			route := routeLabel(r.URL.Path)
			duration := time.Since(start)
			c.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
			c.RequestsTotal.WithLabelValues(route, strconv.Itoa(wrapped.statusCode)).Inc()
		}()

		next.ServeHTTP(wrapped, r)
	})
}

// Server represents a metrics HTTP server
type Server struct {
	addr              string
	server            *http.Server
	listener          net.Listener
	registry          *prometheus.Registry
	readHeaderTimeout time.Duration
	mu                sync.RWMutex
}

// NewServer creates a new metrics server with a custom registry
func NewServer(addr string, registry *prometheus.Registry, readHeaderTimeout time.Duration) *Server {
	return &Server{
		addr:              addr,
		registry:          registry,
		readHeaderTimeout: readHeaderTimeout,
	}
}

// Start starts the metrics server
func (s *Server) Start(ctx context.Context) error {
	handler := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.WrapInternal(err, "failed to listen on "+s.addr)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	timeout := s.readHeaderTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	s.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: timeout,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the actual address the server is listening on
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
