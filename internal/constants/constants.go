// Package constants defines common constants used throughout the gembridge application.
package constants

import "time"

// Timeout constants define the default timeout values used across the application.
const (
	// DefaultReadHeaderTimeout is the default maximum duration for reading the request headers.
	DefaultReadHeaderTimeout = 30 * time.Second

	// DefaultWriteTimeout is the default timeout for writing the response.
	// Zero means no limit; relay responses are gated on the AI service and
	// can be slow.
	DefaultWriteTimeout = 0 * time.Second

	// DefaultIdleTimeout is the default maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultUpstreamTimeout is the default timeout for the outbound AI
	// service call. Zero means the call is not bounded; a slow upstream
	// blocks only the request that triggered it.
	DefaultUpstreamTimeout = 0 * time.Second

	// DefaultMetricsReadHeaderTimeout is the default read header timeout for the metrics server.
	DefaultMetricsReadHeaderTimeout = 5 * time.Second
)

// Rate limiting constants define the fixed-window limiter defaults.
const (
	// DefaultRateLimitWindow is the length of the fixed rate-limit window.
	DefaultRateLimitWindow = 15 * time.Minute

	// DefaultRateLimitMaxRequests is the number of requests allowed per
	// client address within one window.
	DefaultRateLimitMaxRequests = 100

	// DefaultRateLimitMaxClients bounds the number of client addresses
	// tracked at once. Oldest entries are evicted first.
	DefaultRateLimitMaxClients = 10000
)

// Default server values used in configuration.
const (
	// DefaultListenAddr is the default listen address for the relay server.
	DefaultListenAddr = ":3000"

	// DefaultMaxRequestBodySize is the default maximum request body size (1 MiB).
	// Relay payloads are a single prompt string; anything larger is abuse.
	DefaultMaxRequestBodySize = 1 * 1024 * 1024
)

// Default Gemini upstream values used in configuration.
const (
	// DefaultGeminiModel is the model used when none is configured.
	DefaultGeminiModel = "gemini-pro"

	// DefaultGeminiEndpoint is the base URL of the generative language API.
	// The model name and ":generateContent" are appended per request.
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

	// UpstreamErrorBodyLimit caps how much of a failed upstream response
	// body is retained for logs and error details.
	UpstreamErrorBodyLimit = 2048
)

// Default logging values used in configuration.
const (
	// DefaultLogDir is the directory log files are written to.
	DefaultLogDir = "logs"

	// EnvProduction is the environment tag that disables console logging.
	EnvProduction = "production"
)

// DefaultChannelBufferSize is the default buffer size for signal and error channels.
const DefaultChannelBufferSize = 1
