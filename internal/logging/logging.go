// Package logging builds the multi-sink structured logger for gembridge.
//
// The relay keeps three append-only log files for post-hoc debugging: an
// error-only JSON stream, a combined JSON stream, and a human-readable text
// stream. Outside of production a console sink is added as well. The
// resulting *slog.Logger is constructed once at startup and injected into
// the components that need it; there is no ambient global logger state.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/castellan/gembridge/internal/config"
	"github.com/castellan/gembridge/internal/errors"
)

// File names created under the configured log directory.
const (
	ErrorLogFile    = "error.log"
	CombinedLogFile = "combined.log"
	TextLogFile     = "app.log"
)

// Logger bundles the constructed slog.Logger with the file handles backing
// it, so the caller can flush and close them at shutdown.
type Logger struct {
	*slog.Logger
	files []*os.File
}

// Options controls logger construction.
type Options struct {
	Dir     string // Directory for log files, created if absent
	Level   string // Minimum level for the combined, text and console sinks
	Console bool   // Mirror log records to stdout
}

// FromConfig derives logger options from the application configuration.
func FromConfig(cfg *config.Config) Options {
	return Options{
		Dir:     cfg.Log.Dir,
		Level:   cfg.Log.Level,
		Console: !cfg.IsProduction(),
	}
}

// New creates the multi-sink logger. Failure to create the log directory or
// open a sink is a startup error; the process has nowhere to record
// failures without its sinks.
func New(opts Options) (*Logger, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, errors.WrapConfig(err, "creating log directory")
	}

	level := ParseLevel(opts.Level)

	l := &Logger{}
	var handlers []slog.Handler

	errorFile, err := l.openSink(filepath.Join(opts.Dir, ErrorLogFile))
	if err != nil {
		return nil, err
	}
	handlers = append(handlers, slog.NewJSONHandler(errorFile, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	combinedFile, err := l.openSink(filepath.Join(opts.Dir, CombinedLogFile))
	if err != nil {
		return nil, err
	}
	handlers = append(handlers, slog.NewJSONHandler(combinedFile, &slog.HandlerOptions{
		Level: level,
	}))

	textFile, err := l.openSink(filepath.Join(opts.Dir, TextLogFile))
	if err != nil {
		return nil, err
	}
	handlers = append(handlers, slog.NewTextHandler(textFile, &slog.HandlerOptions{
		Level: level,
	}))

	if opts.Console {
		handlers = append(handlers, slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
	}

	l.Logger = slog.New(NewFanoutHandler(handlers...))
	return l, nil
}

// openSink opens a log file for appending and tracks it for Close.
func (l *Logger) openSink(path string) (io.Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.Close()
		return nil, errors.WrapConfig(err, "opening log file "+path)
	}
	l.files = append(l.files, f)
	return f, nil
}

// Close flushes and closes all file sinks.
func (l *Logger) Close() error {
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}

// ParseLevel maps a config level string to a slog.Level. Unknown values
// fall back to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// fanoutHandler dispatches each record to every child handler. Each child
// applies its own level gate, which is how the error-only sink stays
// error-only while the combined sink sees everything.
type fanoutHandler struct {
	handlers []slog.Handler
}

// NewFanoutHandler creates a slog.Handler that duplicates records across
// the given handlers.
func NewFanoutHandler(handlers ...slog.Handler) slog.Handler {
	return &fanoutHandler{handlers: handlers}
}

// Enabled reports whether any child handler wants the record.
func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle forwards the record to every child that accepts its level.
func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WithAttrs returns a fanout over the children with the attributes added.
func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: handlers}
}

// WithGroup returns a fanout over the children with the group opened.
func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: handlers}
}
