// Package main provides the gembridge CLI application, an HTTP relay in
// front of the Google Gemini API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/castellan/gembridge/internal/app"
	"github.com/castellan/gembridge/internal/config"
	"github.com/castellan/gembridge/internal/constants"
)

var version = "dev"

// exitFunc allows tests to override os.Exit
var exitFunc = os.Exit

// cliArgs holds parsed command-line arguments
type cliArgs struct {
	configPath string
	verbose    bool
	help       bool
	version    bool
	validate   bool
}

// parseCLIArgs parses command-line arguments and returns the parsed values
func parseCLIArgs(args []string) (*cliArgs, error) {
	fs := flag.NewFlagSet("gembridge", flag.ContinueOnError)

	result := &cliArgs{}
	fs.StringVar(&result.configPath, "config", "", "Path to TOML configuration file (optional)")
	fs.BoolVar(&result.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&result.help, "help", false, "Show usage information")
	fs.BoolVar(&result.help, "h", false, "Show usage information")
	fs.BoolVar(&result.version, "version", false, "Show version information")
	fs.BoolVar(&result.validate, "validate", false, "Validate configuration and exit")

	usage := func() {
		fmt.Fprintf(os.Stdout, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}
	fs.Usage = usage

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	flag.Usage = usage

	// Check GEMBRIDGE_DEBUG environment variable if verbose not explicitly set
	if !result.verbose && os.Getenv("GEMBRIDGE_DEBUG") != "" {
		result.verbose = true
	}

	return result, nil
}

// loadConfig resolves the config path and loads the configuration. When no
// path is given, the XDG config search path is consulted before falling
// back to environment variables alone.
func loadConfig(args *cliArgs) (*config.Config, error) {
	path := args.configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if args.verbose {
		cfg.Log.Level = "debug"
	}

	return cfg, nil
}

// validateConfig validates the configuration and returns an error if invalid
func validateConfig(args *cliArgs) error {
	slog.Debug("validating configuration", "path", args.configPath)

	if _, err := loadConfig(args); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	slog.Info("configuration is valid")
	return nil
}

// Application interface for testing
type Application interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Allow replacing the app factory for tests.
var newApp = func(cfg *config.Config) (Application, error) {
	return app.NewApp(cfg)
}

// run executes the main application logic
func run(args *cliArgs, sigCh <-chan os.Signal) error {
	if args.help {
		flag.Usage()
		return nil
	}

	if args.version {
		fmt.Printf("gembridge version: %s\n", version)
		return nil
	}

	if args.validate {
		return validateConfig(args)
	}

	slog.Info("starting gembridge", "version", version)

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	application, err := newApp(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Create error channel for application startup
	appErrCh := make(chan error, constants.DefaultChannelBufferSize)

	ctx := context.Background()
	go func() {
		if err := application.Start(ctx); err != nil {
			appErrCh <- fmt.Errorf("failed to start application: %w", err)
		}
	}()

	// Wait for either signal or application error
	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)
	case err := <-appErrCh:
		return err
	}

	shutdownTimeout := constants.DefaultShutdownTimeout
	if cfg.Server.ShutdownTimeout != nil {
		shutdownTimeout = *cfg.Server.ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	return nil
}

func main() {
	args, err := parseCLIArgs(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			exitFunc(0)
		}
		// Flag parsing errors already printed by flag package
		exitFunc(2)
	}

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, constants.DefaultChannelBufferSize)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if err := run(args, sigCh); err != nil {
		slog.Error("error", "error", err)
		exitFunc(1)
	}

	exitFunc(0)
}
