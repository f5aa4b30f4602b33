// Package config handles configuration parsing and validation for gembridge.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/castellan/gembridge/internal/constants"
	"github.com/castellan/gembridge/internal/errors"
)

// Config represents the complete gembridge configuration
type Config struct {
	Environment string    `mapstructure:"environment"` // Deployment environment tag ("production" disables console logging)
	Server      Server    `mapstructure:"server"`      // HTTP listener settings
	Gemini      Gemini    `mapstructure:"gemini"`      // Upstream AI service settings
	RateLimit   RateLimit `mapstructure:"ratelimit"`   // Fixed-window rate limiter settings
	Log         Log       `mapstructure:"log"`         // Log sink settings
	Metrics     Metrics   `mapstructure:"metrics"`     // Prometheus exposition settings
}

// Server contains HTTP listener configuration
type Server struct {
	ListenAddr         string         `mapstructure:"listen_addr"`           // Address to bind (default :3000)
	ReadHeaderTimeout  *time.Duration `mapstructure:"read_header_timeout"`   // Time allowed to read request headers
	WriteTimeout       *time.Duration `mapstructure:"write_timeout"`         // Max duration for writing response (0 = none)
	IdleTimeout        *time.Duration `mapstructure:"idle_timeout"`          // Max time to wait for next request
	ShutdownTimeout    *time.Duration `mapstructure:"shutdown_timeout"`      // Max duration for graceful shutdown
	MaxRequestBodySize *int64         `mapstructure:"max_request_body_size"` // Maximum request body size in bytes
}

// Gemini contains upstream AI service configuration
type Gemini struct {
	APIKey   RedactedString `mapstructure:"api_key"`  // API credential (falls back to GEMINI_API_KEY)
	Endpoint string         `mapstructure:"endpoint"` // Base URL for the generative language API
	Model    string         `mapstructure:"model"`    // Model name appended to the endpoint
	Timeout  *time.Duration `mapstructure:"timeout"`  // Outbound call timeout (0 = none)
}

// RateLimit contains fixed-window rate limiter configuration
type RateLimit struct {
	Window      *time.Duration `mapstructure:"window"`       // Length of the counting window
	MaxRequests int            `mapstructure:"max_requests"` // Requests allowed per client per window
	MaxClients  int            `mapstructure:"max_clients"`  // Bound on tracked client addresses
}

// Log contains log sink configuration
type Log struct {
	Dir   string `mapstructure:"dir"`   // Directory for log files
	Level string `mapstructure:"level"` // Minimum level: debug, info, warn, error
}

// Metrics contains Prometheus exposition configuration
type Metrics struct {
	Addr              string         `mapstructure:"addr"`                // Address for the metrics listener (empty = disabled)
	ReadHeaderTimeout *time.Duration `mapstructure:"read_header_timeout"` // Read header timeout for the metrics server
}

// envPrefix is the prefix for environment variable overrides.
const envPrefix = "GEMBRIDGE_"

// DefaultConfigPath returns the path of a config file found in the XDG
// config search path, or empty when none exists.
func DefaultConfigPath() string {
	path, err := xdg.SearchConfigFile("gembridge/config.toml")
	if err != nil {
		return ""
	}
	return path
}

// Load reads and parses the configuration. The path may be empty, in which
// case only environment variables and defaults apply. The function supports:
// - TOML file parsing
// - GEMBRIDGE_-prefixed environment variable overrides
// - Conventional fallbacks (GEMINI_API_KEY, PORT)
// - Validation and defaults
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errors.WrapConfig(err, "loading config file")
		}
	}

	// Load environment variables with GEMBRIDGE_ prefix. This allows
	// overriding any config value via environment, e.g.
	// GEMBRIDGE_GEMINI_API_KEY maps to gemini.api_key.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ToLower(s)
		// Replace only the first underscore to separate section from field
		idx := strings.Index(s, "_")
		if idx > 0 {
			return s[:idx] + "." + s[idx+1:]
		}
		return s
	}), nil); err != nil {
		return nil, errors.WrapConfig(err, "loading environment variables")
	}

	var cfg Config
	decoderConfig := &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			redactedStringDecodeHook(),
		),
		Result:           &cfg,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, errors.WrapConfig(err, "creating config decoder")
	}
	if err := decoder.Decode(k.Raw()); err != nil {
		return nil, errors.WrapConfig(err, "unmarshaling config")
	}

	applyConventionalEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyConventionalEnv honors the conventional variable names the mobile
// deployment sets, without requiring the GEMBRIDGE_ prefix.
func applyConventionalEnv(cfg *Config) {
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = RedactedString(os.Getenv("GEMINI_API_KEY"))
	}
	if cfg.Server.ListenAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.Server.ListenAddr = ":" + port
		}
	}
	if cfg.Environment == "" {
		cfg.Environment = os.Getenv("GEMBRIDGE_ENV")
	}
}

// applyDefaults fills in default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = constants.DefaultListenAddr
	}
	if cfg.Server.ReadHeaderTimeout == nil {
		cfg.Server.ReadHeaderTimeout = durationPtr(constants.DefaultReadHeaderTimeout)
	}
	if cfg.Server.WriteTimeout == nil {
		cfg.Server.WriteTimeout = durationPtr(constants.DefaultWriteTimeout)
	}
	if cfg.Server.IdleTimeout == nil {
		cfg.Server.IdleTimeout = durationPtr(constants.DefaultIdleTimeout)
	}
	if cfg.Server.ShutdownTimeout == nil {
		cfg.Server.ShutdownTimeout = durationPtr(constants.DefaultShutdownTimeout)
	}
	if cfg.Server.MaxRequestBodySize == nil {
		size := int64(constants.DefaultMaxRequestBodySize)
		cfg.Server.MaxRequestBodySize = &size
	}
	if cfg.Gemini.Endpoint == "" {
		cfg.Gemini.Endpoint = constants.DefaultGeminiEndpoint
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = constants.DefaultGeminiModel
	}
	if cfg.Gemini.Timeout == nil {
		cfg.Gemini.Timeout = durationPtr(constants.DefaultUpstreamTimeout)
	}
	if cfg.RateLimit.Window == nil {
		cfg.RateLimit.Window = durationPtr(constants.DefaultRateLimitWindow)
	}
	if cfg.RateLimit.MaxRequests == 0 {
		cfg.RateLimit.MaxRequests = constants.DefaultRateLimitMaxRequests
	}
	if cfg.RateLimit.MaxClients == 0 {
		cfg.RateLimit.MaxClients = constants.DefaultRateLimitMaxClients
	}
	if cfg.Log.Dir == "" {
		cfg.Log.Dir = constants.DefaultLogDir
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Metrics.ReadHeaderTimeout == nil {
		cfg.Metrics.ReadHeaderTimeout = durationPtr(constants.DefaultMetricsReadHeaderTimeout)
	}
}

// Validate checks the configuration for errors. The process must refuse to
// start without an AI service credential.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return errors.NewConfigError("gemini api_key is required (set GEMINI_API_KEY)")
	}
	if c.Gemini.Endpoint == "" {
		return errors.NewValidationError("gemini endpoint cannot be empty")
	}
	if c.Gemini.Model == "" {
		return errors.NewValidationError("gemini model cannot be empty")
	}
	if c.Server.ListenAddr == "" {
		return errors.NewValidationError("server listen_addr cannot be empty")
	}
	if c.Server.ReadHeaderTimeout != nil && *c.Server.ReadHeaderTimeout < 0 {
		return errors.NewValidationError("server read_header_timeout cannot be negative")
	}
	if c.Server.WriteTimeout != nil && *c.Server.WriteTimeout < 0 {
		return errors.NewValidationError("server write_timeout cannot be negative")
	}
	if c.Server.IdleTimeout != nil && *c.Server.IdleTimeout < 0 {
		return errors.NewValidationError("server idle_timeout cannot be negative")
	}
	if c.Gemini.Timeout != nil && *c.Gemini.Timeout < 0 {
		return errors.NewValidationError("gemini timeout cannot be negative")
	}
	if c.RateLimit.Window != nil && *c.RateLimit.Window <= 0 {
		return errors.NewValidationError("ratelimit window must be positive")
	}
	if c.RateLimit.MaxRequests < 0 {
		return errors.NewValidationError("ratelimit max_requests cannot be negative")
	}
	if c.RateLimit.MaxClients <= 0 {
		return errors.NewValidationError("ratelimit max_clients must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.NewValidationError(fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	return nil
}

// IsProduction reports whether the environment tag selects production
// behavior (no console logging).
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, constants.EnvProduction)
}

// redactedStringDecodeHook provides a mapstructure hook for RedactedString
func redactedStringDecodeHook() mapstructure.DecodeHookFunc {
	return func(
		from reflect.Type,
		to reflect.Type,
		data any,
	) (any, error) {
		if to != reflect.TypeOf(RedactedString("")) {
			return data, nil
		}

		if from.Kind() == reflect.String {
			return RedactedString(data.(string)), nil
		}

		if data == nil {
			return RedactedString(""), nil
		}

		return data, nil
	}
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
