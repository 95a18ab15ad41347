// Package log provides structured logging with request-scoped attributes.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/helixml/cinerag/internal/config"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// Context keys for logging.
const (
	CorrelationIDKey ContextKey = "correlation_id"
	RequestIDKey     ContextKey = "request_id"
	UserIDKey        ContextKey = "user_id"
)

var contextKeys = []ContextKey{CorrelationIDKey, RequestIDKey, UserIDKey}

// ContextHandler adds request-scoped values found in the context to every record.
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler wraps next so that *Context logging calls carry context values.
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

// Enabled reports whether the wrapped handler handles records at the given level.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle adds context attributes and forwards the record.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		for _, key := range contextKeys {
			if v, ok := ctx.Value(key).(string); ok && v != "" && !hasAttr(r, string(key)) {
				r.AddAttrs(slog.String(string(key), v))
			}
		}
	}
	return h.next.Handle(ctx, r)
}

func hasAttr(r slog.Record, key string) bool {
	found := false
	r.Attrs(func(a slog.Attr) bool {
		found = a.Key == key
		return !found
	})
	return found
}

// WithAttrs returns a handler with additional attributes.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup returns a handler with a group prefix.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}

// New creates a logger writing to w in the given format.
func New(w io.Writer, format config.LogFormat, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch format {
	case config.LogFormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	case config.LogFormatPretty:
		handler = NewConsoleHandler(w, opts.Level)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewContextHandler(handler))
}

// NewLogger creates a logger from application configuration, writing to stdout.
func NewLogger(cfg config.AppConfig) *slog.Logger {
	return New(os.Stdout, cfg.LogFormat(), cfg.LogLevel())
}

// NewStderrLogger creates a logger writing to stderr.
// Used by the stdio MCP transport, where stdout carries protocol messages.
func NewStderrLogger(cfg config.AppConfig) *slog.Logger {
	return New(os.Stderr, cfg.LogFormat(), cfg.LogLevel())
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithUserID adds the acting user ID to the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// CorrelationID extracts the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	return stringValue(ctx, CorrelationIDKey)
}

// RequestID extracts the request ID from context.
func RequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// UserID extracts the user ID from context.
func UserID(ctx context.Context) string {
	return stringValue(ctx, UserIDKey)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if id, ok := ctx.Value(key).(string); ok {
		return id
	}
	return ""
}

// Configure builds a logger from configuration and installs it as the slog default.
func Configure(cfg config.AppConfig) *slog.Logger {
	l := NewLogger(cfg)
	slog.SetDefault(l)
	return l
}
