package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "requestID"

// LevelTrace sits below DEBUG for per-node and per-edge detail
const LevelTrace = slog.LevelDebug - 4

var (
	output  atomic.Pointer[io.Writer]
	handler atomic.Pointer[slog.Handler]
	logger  = slog.New(switchHandler{})
)

func init() {
	// Logs go to stderr so command output on stdout stays machine readable
	var w io.Writer = os.Stderr
	output.Store(&w)
	SetLevel(slog.LevelInfo)
}

// SetOutput redirects log output; the current format and level are reset to
// the compact console handler at INFO.
func SetOutput(w io.Writer) {
	output.Store(&w)
	SetLevel(slog.LevelInfo)
}

// SetLevel installs the compact console handler at the given level
func SetLevel(level slog.Level) {
	var h slog.Handler = NewCompactHandler(*output.Load(), &slog.HandlerOptions{
		Level: level,
	})
	handler.Store(&h)
}

// SetJSONOutput switches to JSON format output
func SetJSONOutput(level slog.Level) {
	var h slog.Handler = slog.NewJSONHandler(*output.Load(), &slog.HandlerOptions{
		Level: level,
	})
	handler.Store(&h)
}

// New returns a logger that tags every record with the component name.
// It follows later SetLevel and SetJSONOutput calls.
func New(component string) *slog.Logger {
	return logger.With("component", component)
}

// switchHandler forwards to whichever handler is currently installed,
// replaying the attributes and groups added through With.
type switchHandler struct {
	wrap []func(slog.Handler) slog.Handler
}

func (s switchHandler) current() slog.Handler {
	h := *handler.Load()
	for _, w := range s.wrap {
		h = w(h)
	}
	return h
}

func (s switchHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*handler.Load()).Enabled(ctx, level)
}

func (s switchHandler) Handle(ctx context.Context, r slog.Record) error {
	return s.current().Handle(ctx, r)
}

func (s switchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return s.with(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (s switchHandler) WithGroup(name string) slog.Handler {
	return s.with(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (s switchHandler) with(w func(slog.Handler) slog.Handler) switchHandler {
	wrap := make([]func(slog.Handler) slog.Handler, len(s.wrap), len(s.wrap)+1)
	copy(wrap, s.wrap)
	return switchHandler{wrap: append(wrap, w)}
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

func withRequestID(ctx context.Context, args []any) []any {
	requestID := GetRequestID(ctx)
	if requestID != "" {
		return append([]any{"requestID", requestID}, args...)
	}
	return args
}

// Trace logs at TRACE level (very verbose, debug-time only)
func Trace(msg string, args ...any) {
	logger.Log(context.Background(), LevelTrace, msg, args...)
}

// TraceContext logs at TRACE level with context
func TraceContext(ctx context.Context, msg string, args ...any) {
	logger.Log(ctx, LevelTrace, msg, withRequestID(ctx, args)...)
}

// Debug logs at DEBUG level (internal component behavior)
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// DebugContext logs at DEBUG level with context
func DebugContext(ctx context.Context, msg string, args ...any) {
	logger.DebugContext(ctx, msg, withRequestID(ctx, args)...)
}

// Info logs at INFO level (user-facing operations)
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

// InfoContext logs at INFO level with context
func InfoContext(ctx context.Context, msg string, args ...any) {
	logger.InfoContext(ctx, msg, withRequestID(ctx, args)...)
}

// Warn logs at WARN level (should be monitored)
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// WarnContext logs at WARN level with context
func WarnContext(ctx context.Context, msg string, args ...any) {
	logger.WarnContext(ctx, msg, withRequestID(ctx, args)...)
}

// Error logs at ERROR level (logical bugs that shouldn't happen)
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

// ErrorContext logs at ERROR level with context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	logger.ErrorContext(ctx, msg, withRequestID(ctx, args)...)
}

// Fatal logs at ERROR level and exits (unrecoverable bugs)
func Fatal(msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}

// ParseLevel maps a verbosity name (trace, debug, info, warn, error) to a level
func ParseLevel(name string) slog.Level {
	switch name {
	case "trace":
		return LevelTrace
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
