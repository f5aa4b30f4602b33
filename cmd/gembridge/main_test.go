package main

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/gembridge/internal/config"
)

func TestParseCLIArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want cliArgs
	}{
		{
			name: "defaults",
			args: []string{},
			want: cliArgs{},
		},
		{
			name: "config path",
			args: []string{"-config", "/etc/gembridge/config.toml"},
			want: cliArgs{configPath: "/etc/gembridge/config.toml"},
		},
		{
			name: "verbose flag",
			args: []string{"-verbose"},
			want: cliArgs{verbose: true},
		},
		{
			name: "version flag",
			args: []string{"-version"},
			want: cliArgs{version: true},
		},
		{
			name: "validate flag",
			args: []string{"-validate"},
			want: cliArgs{validate: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMBRIDGE_DEBUG", "")

			got, err := parseCLIArgs(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseCLIArgsDebugEnv(t *testing.T) {
	t.Setenv("GEMBRIDGE_DEBUG", "1")

	got, err := parseCLIArgs([]string{})
	require.NoError(t, err)
	assert.True(t, got.verbose)
}

func TestParseCLIArgsInvalidFlag(t *testing.T) {
	_, err := parseCLIArgs([]string{"-no-such-flag"})
	assert.Error(t, err)
}

func TestRunVersion(t *testing.T) {
	err := run(&cliArgs{version: true}, nil)
	assert.NoError(t, err)
}

func TestRunValidate(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("PORT", "")
	t.Setenv("GEMBRIDGE_ENV", "")

	err := run(&cliArgs{validate: true}, nil)
	assert.NoError(t, err)
}

func TestRunValidateMissingCredential(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("PORT", "")
	t.Setenv("GEMBRIDGE_ENV", "")

	err := run(&cliArgs{validate: true}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")
}

// mockApplication records lifecycle calls for run tests
type mockApplication struct {
	started  chan struct{}
	shutdown chan struct{}
	startErr error
}

func (m *mockApplication) Start(ctx context.Context) error {
	if m.startErr != nil {
		return m.startErr
	}
	close(m.started)
	return nil
}

func (m *mockApplication) Shutdown(ctx context.Context) error {
	close(m.shutdown)
	return nil
}

func TestRunShutsDownOnSignal(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("PORT", "")
	t.Setenv("GEMBRIDGE_ENV", "")

	mock := &mockApplication{
		started:  make(chan struct{}),
		shutdown: make(chan struct{}),
	}

	origNewApp := newApp
	newApp = func(cfg *config.Config) (Application, error) {
		return mock, nil
	}
	defer func() { newApp = origNewApp }()

	sigCh := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- run(&cliArgs{}, sigCh)
	}()

	select {
	case <-mock.started:
	case <-time.After(2 * time.Second):
		t.Fatal("application was not started")
	}

	sigCh <- syscall.SIGTERM

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after signal")
	}

	select {
	case <-mock.shutdown:
	case <-time.After(time.Second):
		t.Fatal("application was not shut down")
	}
}
