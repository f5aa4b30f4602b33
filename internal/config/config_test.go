package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConventionalEnv keeps ambient variables from the host environment
// out of config tests.
func clearConventionalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("PORT", "")
	t.Setenv("GEMBRIDGE_ENV", "")
}

func TestLoad(t *testing.T) {
	t.Run("missing API key returns config error", func(t *testing.T) {
		clearConventionalEnv(t)

		_, err := Load("")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "api_key is required")
	})

	t.Run("nonexistent config file returns error", func(t *testing.T) {
		clearConventionalEnv(t)

		_, err := Load("/nonexistent/config.toml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "loading config file")
	})

	t.Run("malformed TOML returns error", func(t *testing.T) {
		clearConventionalEnv(t)

		tmpFile := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(tmpFile, []byte("invalid toml [[["), 0644))

		_, err := Load(tmpFile)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "loading config file")
	})

	t.Run("defaults applied with only credential set", func(t *testing.T) {
		clearConventionalEnv(t)
		t.Setenv("GEMINI_API_KEY", "test-key")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, ":3000", cfg.Server.ListenAddr)
		assert.Equal(t, "test-key", cfg.Gemini.APIKey.Value())
		assert.Equal(t, "gemini-pro", cfg.Gemini.Model)
		assert.Equal(t, 15*time.Minute, *cfg.RateLimit.Window)
		assert.Equal(t, 100, cfg.RateLimit.MaxRequests)
		assert.Equal(t, "logs", cfg.Log.Dir)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, time.Duration(0), *cfg.Gemini.Timeout)
		assert.False(t, cfg.IsProduction())
	})

	t.Run("TOML file values are honored", func(t *testing.T) {
		clearConventionalEnv(t)

		configContent := `
environment = "production"

[server]
listen_addr = ":8081"
read_header_timeout = "10s"

[gemini]
api_key = "file-key"
model = "gemini-1.5-flash"
timeout = "90s"

[ratelimit]
window = "1m"
max_requests = 5

[log]
dir = "/tmp/gembridge-logs"
level = "debug"
`
		tmpFile := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

		cfg, err := Load(tmpFile)
		require.NoError(t, err)

		assert.Equal(t, ":8081", cfg.Server.ListenAddr)
		assert.Equal(t, 10*time.Second, *cfg.Server.ReadHeaderTimeout)
		assert.Equal(t, "file-key", cfg.Gemini.APIKey.Value())
		assert.Equal(t, "gemini-1.5-flash", cfg.Gemini.Model)
		assert.Equal(t, 90*time.Second, *cfg.Gemini.Timeout)
		assert.Equal(t, time.Minute, *cfg.RateLimit.Window)
		assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.True(t, cfg.IsProduction())
	})

	t.Run("environment variables override file values", func(t *testing.T) {
		clearConventionalEnv(t)

		configContent := `
[gemini]
api_key = "file-key"
model = "gemini-pro"
`
		tmpFile := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

		t.Setenv("GEMBRIDGE_GEMINI_API_KEY", "env-key")
		t.Setenv("GEMBRIDGE_SERVER_LISTEN_ADDR", ":9000")

		cfg, err := Load(tmpFile)
		require.NoError(t, err)

		assert.Equal(t, "env-key", cfg.Gemini.APIKey.Value())
		assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	})

	t.Run("conventional PORT variable sets listen address", func(t *testing.T) {
		clearConventionalEnv(t)
		t.Setenv("GEMINI_API_KEY", "test-key")
		t.Setenv("PORT", "4242")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, ":4242", cfg.Server.ListenAddr)
	})

	t.Run("GEMBRIDGE_ENV sets environment tag", func(t *testing.T) {
		clearConventionalEnv(t)
		t.Setenv("GEMINI_API_KEY", "test-key")
		t.Setenv("GEMBRIDGE_ENV", "production")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})

	t.Run("loading twice yields identical config", func(t *testing.T) {
		clearConventionalEnv(t)
		t.Setenv("GEMINI_API_KEY", "test-key")

		first, err := Load("")
		require.NoError(t, err)
		second, err := Load("")
		require.NoError(t, err)

		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("config mismatch (-first +second):\n%s", diff)
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Gemini.APIKey = "key"
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config passes",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing API key",
			mutate:  func(c *Config) { c.Gemini.APIKey = "" },
			wantErr: "api_key is required",
		},
		{
			name:    "empty endpoint",
			mutate:  func(c *Config) { c.Gemini.Endpoint = "" },
			wantErr: "endpoint cannot be empty",
		},
		{
			name:    "empty model",
			mutate:  func(c *Config) { c.Gemini.Model = "" },
			wantErr: "model cannot be empty",
		},
		{
			name:    "negative upstream timeout",
			mutate:  func(c *Config) { c.Gemini.Timeout = durationPtr(-time.Second) },
			wantErr: "timeout cannot be negative",
		},
		{
			name:    "zero rate limit window",
			mutate:  func(c *Config) { c.RateLimit.Window = durationPtr(0) },
			wantErr: "window must be positive",
		},
		{
			name:    "negative max requests",
			mutate:  func(c *Config) { c.RateLimit.MaxRequests = -1 },
			wantErr: "max_requests cannot be negative",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "unknown log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRedactedString(t *testing.T) {
	secret := RedactedString("super-secret-key")

	assert.Equal(t, "[REDACTED]", secret.String())
	assert.Equal(t, "super-secret-key", secret.Value())

	text, err := secret.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", string(text))

	empty := RedactedString("")
	assert.Equal(t, "", empty.String())
}
