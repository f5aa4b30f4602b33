// Package app provides the main application lifecycle management for gembridge.
package app

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/castellan/gembridge/internal/config"
	gberrors "github.com/castellan/gembridge/internal/errors"
	"github.com/castellan/gembridge/internal/gemini"
	"github.com/castellan/gembridge/internal/handlers"
	"github.com/castellan/gembridge/internal/logging"
	"github.com/castellan/gembridge/internal/metrics"
	"github.com/castellan/gembridge/internal/middleware"
)

// App encapsulates the gembridge application lifecycle
type App struct {
	cfg           *config.Config
	logger        *slog.Logger
	logSinks      *logging.Logger
	collector     *metrics.Collector
	metricsServer *metrics.Server
	server        *http.Server
	listener      net.Listener

	mu        sync.RWMutex
	startOnce sync.Once
	stopOnce  sync.Once
}

// Options allows customizing App creation for testing
type Options struct {
	// Logger replaces the file-backed logger, keeping tests off the filesystem
	Logger *slog.Logger

	// Generator replaces the real AI service client
	Generator handlers.Generator
}

// NewApp creates a new App instance with the given configuration
func NewApp(cfg *config.Config) (*App, error) {
	return NewAppWithOptions(cfg, Options{})
}

// NewAppWithOptions creates a new App instance with custom options
func NewAppWithOptions(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, gberrors.NewValidationError("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{cfg: cfg}

	if opts.Logger != nil {
		app.logger = opts.Logger
	} else {
		sinks, err := logging.New(logging.FromConfig(cfg))
		if err != nil {
			return nil, err
		}
		app.logSinks = sinks
		app.logger = sinks.Logger
	}

	app.collector = metrics.NewCollector()
	if cfg.Metrics.Addr != "" {
		if err := app.setupMetricsServer(); err != nil {
			app.closeSinks()
			return nil, err
		}
	}

	generator := opts.Generator
	if generator == nil {
		generator = gemini.NewClient(cfg.Gemini)
	}
	generator = &instrumentedGenerator{
		generator: generator,
		collector: app.collector,
	}

	handler, err := app.buildHandler(generator)
	if err != nil {
		app.closeSinks()
		return nil, err
	}

	app.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: *cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      *cfg.Server.WriteTimeout,
		IdleTimeout:       *cfg.Server.IdleTimeout,
	}

	return app, nil
}

// setupMetricsServer initializes the metrics registry and server
func (a *App) setupMetricsServer() error {
	reg := prometheus.NewRegistry()

	// Register default collectors (Go runtime and process metrics)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := a.collector.Register(reg); err != nil {
		return gberrors.WrapInternal(err, "failed to register metrics")
	}

	a.metricsServer = metrics.NewServer(a.cfg.Metrics.Addr, reg, *a.cfg.Metrics.ReadHeaderTimeout)
	return nil
}

// buildHandler assembles the middleware chain around the route table.
// Order follows the request flow: panic boundary and header policies
// first, then rate limiting, then request logging and metrics.
func (a *App) buildHandler(generator handlers.Generator) (http.Handler, error) {
	limiter, err := middleware.NewRateLimiter(
		*a.cfg.RateLimit.Window,
		a.cfg.RateLimit.MaxRequests,
		a.cfg.RateLimit.MaxClients,
	)
	if err != nil {
		return nil, err
	}
	limiter.OnReject = a.collector.RecordRateLimitRejection

	handler := handlers.New(generator, a.logger).Routes()
	handler = a.collector.Middleware(handler)
	handler = middleware.AccessLog(a.logger)(handler)
	handler = limiter.Middleware(handler)
	handler = middleware.MaxBytesHandler(*a.cfg.Server.MaxRequestBodySize)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.CORS(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.Recovery(a.logger)(handler)
	return handler, nil
}

// Start begins serving requests. It returns once the listener is bound;
// serving continues in the background until Shutdown.
func (a *App) Start(ctx context.Context) error {
	var startErr error
	a.startOnce.Do(func() {
		listener, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			startErr = gberrors.WrapInternal(err, "failed to listen on "+a.cfg.Server.ListenAddr)
			return
		}

		a.mu.Lock()
		a.listener = listener
		a.mu.Unlock()

		if a.metricsServer != nil {
			if err := a.metricsServer.Start(ctx); err != nil {
				listener.Close()
				startErr = err
				return
			}
			a.logger.Info("metrics server listening", "addr", a.metricsServer.Addr())
		}

		a.logger.Info("gembridge listening",
			"addr", listener.Addr().String(),
			"environment", a.cfg.Environment,
			"model", a.cfg.Gemini.Model,
		)

		go func() {
			if err := a.server.Serve(listener); err != nil && err != http.ErrServerClosed {
				a.logger.Error("server error", "error", err)
			}
		}()
	})
	return startErr
}

// Addr returns the bound listener address, or empty before Start.
func (a *App) Addr() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Shutdown gracefully stops the server, the metrics listener and the log sinks
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down")

		if err := a.server.Shutdown(ctx); err != nil {
			shutdownErr = gberrors.WrapInternal(err, "shutting down server")
		}

		if a.metricsServer != nil {
			if err := a.metricsServer.Shutdown(ctx); err != nil && shutdownErr == nil {
				shutdownErr = gberrors.WrapInternal(err, "shutting down metrics server")
			}
		}

		a.closeSinks()
	})
	return shutdownErr
}

// closeSinks closes file-backed log sinks when the app owns them
func (a *App) closeSinks() {
	if a.logSinks != nil {
		_ = a.logSinks.Close()
	}
}

// instrumentedGenerator records upstream call metrics around the real client
type instrumentedGenerator struct {
	generator handlers.Generator
	collector *metrics.Collector
}

func (g *instrumentedGenerator) GenerateContent(ctx context.Context, prompt string) (*gemini.Result, error) {
	start := time.Now()
	result, err := g.generator.GenerateContent(ctx, prompt)
	g.collector.RecordUpstream(err == nil, time.Since(start))
	return result, err
}
