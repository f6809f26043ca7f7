/*
Package logging provides the structured logger used by the server and CLI.

PURPOSE:
  A thin layer over log/slog that tags every record with the component
  that emitted it (api, store, scheduler, events). Handlers are text for
  terminals and JSON for log shippers.

USAGE:
  logger := logging.New(logging.Config{Level: slog.LevelInfo, Format: "json"})
  logging.SetDefault(logger)
  storeLog := logger.WithComponent(logging.ComponentStore)
  storeLog.Info("book loaded", logging.FieldClients, 3)

SEE ALSO:
  - fields.go: Shared field, component and operation names
*/
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with a component name.
type Logger struct {
	*slog.Logger
	component string
}

// Config holds logger configuration.
type Config struct {
	Level     slog.Level
	Format    string // "text" or "json"
	Component string
	Output    io.Writer
}

// DefaultConfig logs info and above as text to stdout.
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Format:    "text",
		Component: ComponentApp,
		Output:    os.Stdout,
	}
}

// New creates a logger from the configuration.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	component := cfg.Component
	if component == "" {
		component = ComponentApp
	}
	return &Logger{
		Logger:    slog.New(handler).With(FieldComponent, component),
		component: component,
	}
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *Logger {
	return New(Config{Output: io.Discard, Level: slog.LevelError + 4})
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// With returns a logger with the given attributes added.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), component: l.component}
}

// WithComponent returns a logger tagged with another component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With(FieldComponent, component), component: component}
}

// Component returns the logger's component name.
func (l *Logger) Component() string {
	return l.component
}

// Failed logs an operation error at error level.
func (l *Logger) Failed(ctx context.Context, op string, err error, args ...any) {
	l.ErrorContext(ctx, op+" failed", append([]any{FieldOperation, op, FieldError, err}, args...)...)
}

// SetDefault installs the logger as slog's default.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
