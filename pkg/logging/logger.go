package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	requestIDKey    contextKey = "requestID"
	simulationIDKey contextKey = "simulationID"
)

// Output formats accepted by Setup
const (
	FormatCompact = "compact"
	FormatJSON    = "json"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(NewCompactHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

func current() *slog.Logger {
	return logger.Load()
}

// ParseLevel maps trace, debug, info, warn and error to slog levels
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Setup replaces the process logger. format is FormatCompact or FormatJSON.
func Setup(w io.Writer, level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", FormatCompact:
		handler = NewCompactHandler(w, opts)
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	logger.Store(slog.New(handler))
	return nil
}

// SetLevel changes the logging level, keeping compact output on stdout
func SetLevel(level slog.Level) {
	logger.Store(slog.New(NewCompactHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// Logger returns the process logger, for libraries that take a *slog.Logger
func Logger() *slog.Logger {
	return current()
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithSimulationID tags every context log line with a simulation
func WithSimulationID(ctx context.Context, simulationID string) context.Context {
	return context.WithValue(ctx, simulationIDKey, simulationID)
}

// GetSimulationID retrieves the simulation ID from context
func GetSimulationID(ctx context.Context) string {
	if id, ok := ctx.Value(simulationIDKey).(string); ok {
		return id
	}
	return ""
}

// withContextIDs prepends the request and simulation ids found in ctx
func withContextIDs(ctx context.Context, args []any) []any {
	var prefix []any
	if id := GetRequestID(ctx); id != "" {
		prefix = append(prefix, "requestID", id)
	}
	if id := GetSimulationID(ctx); id != "" {
		prefix = append(prefix, "simulationID", id)
	}
	if prefix == nil {
		return args
	}
	return append(prefix, args...)
}

// Trace logs at TRACE level (very verbose, debug-time only)
func Trace(msg string, args ...any) {
	current().Log(context.Background(), LevelTrace, msg, args...)
}

// TraceContext logs at TRACE level with context
func TraceContext(ctx context.Context, msg string, args ...any) {
	current().Log(ctx, LevelTrace, msg, withContextIDs(ctx, args)...)
}

// Debug logs at DEBUG level (internal component behavior)
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// DebugContext logs at DEBUG level with context
func DebugContext(ctx context.Context, msg string, args ...any) {
	current().DebugContext(ctx, msg, withContextIDs(ctx, args)...)
}

// Info logs at INFO level (user-facing operations)
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// InfoContext logs at INFO level with context
func InfoContext(ctx context.Context, msg string, args ...any) {
	current().InfoContext(ctx, msg, withContextIDs(ctx, args)...)
}

// Warn logs at WARN level (should be monitored)
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// WarnContext logs at WARN level with context
func WarnContext(ctx context.Context, msg string, args ...any) {
	current().WarnContext(ctx, msg, withContextIDs(ctx, args)...)
}

// Error logs at ERROR level (logical bugs that shouldn't happen)
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// ErrorContext logs at ERROR level with context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	current().ErrorContext(ctx, msg, withContextIDs(ctx, args)...)
}

// Fatal logs at ERROR level and exits (unrecoverable bugs)
func Fatal(msg string, args ...any) {
	current().Error(msg, args...)
	os.Exit(1)
}

// FatalContext logs at ERROR level with context and exits
func FatalContext(ctx context.Context, msg string, args ...any) {
	current().ErrorContext(ctx, msg, withContextIDs(ctx, args)...)
	os.Exit(1)
}
