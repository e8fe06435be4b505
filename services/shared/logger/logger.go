// Package logger provides structured logging with slog for the socialauth services.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// AttemptIDKey is the context key for the login attempt ID.
	AttemptIDKey contextKey = "attempt_id"
	// ProviderKey is the context key for the social provider.
	ProviderKey contextKey = "provider"
	// TraceIDKey is the context key for trace ID.
	TraceIDKey contextKey = "trace_id"
)

var contextKeys = []contextKey{AttemptIDKey, ProviderKey, TraceIDKey}

// Config holds logger configuration.
type Config struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"` // json or text
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
	Output      io.Writer
}

// Logger wraps slog.Logger with additional functionality.
type Logger struct {
	*slog.Logger
	serviceName string
	environment string
}

// defaultLogger is the package-level logger instance.
var defaultLogger *Logger

// New creates a new Logger instance with the given configuration.
func New(cfg Config) *Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "timestamp"
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			if a.Key == slog.MessageKey {
				a.Key = "message"
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = &contextHandler{
		Handler:     handler,
		serviceName: cfg.ServiceName,
		environment: cfg.Environment,
	}

	return &Logger{
		Logger:      slog.New(handler),
		serviceName: cfg.ServiceName,
		environment: cfg.Environment,
	}
}

// Init initializes the default logger with the given configuration.
func Init(cfg Config) {
	defaultLogger = New(cfg)
	slog.SetDefault(defaultLogger.Logger)
}

// Default returns the default logger instance.
func Default() *Logger {
	if defaultLogger == nil {
		Init(Config{
			Level:       "info",
			Format:      "json",
			ServiceName: "socialauth",
			Environment: "development",
		})
	}
	return defaultLogger
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() *Logger {
	return New(Config{Output: io.Discard, Level: "error"})
}

// contextHandler wraps an slog.Handler to add context-based attributes.
type contextHandler struct {
	slog.Handler
	serviceName string
	environment string
}

// Handle adds context attributes to the log record.
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.serviceName != "" {
		r.AddAttrs(slog.String("service", h.serviceName))
	}
	if h.environment != "" {
		r.AddAttrs(slog.String("environment", h.environment))
	}

	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			r.AddAttrs(slog.String(string(key), v))
		}
	}

	return h.Handler.Handle(ctx, r)
}

// WithAttrs returns a new handler with additional attributes.
func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{
		Handler:     h.Handler.WithAttrs(attrs),
		serviceName: h.serviceName,
		environment: h.environment,
	}
}

// WithGroup returns a new handler with a group name.
func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{
		Handler:     h.Handler.WithGroup(name),
		serviceName: h.serviceName,
		environment: h.environment,
	}
}

// ContextWithAttempt stores the attempt ID and provider for later log records.
func ContextWithAttempt(ctx context.Context, attemptID, provider string) context.Context {
	ctx = context.WithValue(ctx, AttemptIDKey, attemptID)
	return context.WithValue(ctx, ProviderKey, provider)
}

// ContextWithTraceID stores the trace ID for later log records.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// With returns a new Logger with additional attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:      l.Logger.With(args...),
		serviceName: l.serviceName,
		environment: l.environment,
	}
}

// WithError returns a new Logger with an error attribute.
func (l *Logger) WithError(err error) *Logger {
	return l.With("error", err.Error())
}

// WithComponent returns a new Logger with a component attribute.
func (l *Logger) WithComponent(component string) *Logger {
	return l.With("component", component)
}

// WithAttempt returns a new Logger tagged with an attempt ID and provider.
func (l *Logger) WithAttempt(attemptID, provider string) *Logger {
	return l.With(string(AttemptIDKey), attemptID, string(ProviderKey), provider)
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}
