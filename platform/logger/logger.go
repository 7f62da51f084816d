// Package logger provides structured logging for the agency backend.
// It is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	// RequestIDKey is the context key for the request ID
	RequestIDKey contextKey = "request_id"
	// ActorKey is the context key for the acting user (uid or "system")
	ActorKey contextKey = "actor"
)

// Logger wraps slog.Logger with a few domain-specific helpers.
type Logger struct {
	*slog.Logger
}

// New creates a logger for the given environment. Development gets a
// human-readable text handler at debug level; everything else gets JSON.
func New(env string) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// WithContext returns a logger carrying request_id and actor from ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	out := l
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		out = out.WithRequestID(requestID)
	}
	if actor, ok := ctx.Value(ActorKey).(string); ok && actor != "" {
		out = &Logger{Logger: out.With(slog.String("actor", actor))}
	}
	return out
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.With(slog.String("request_id", requestID))}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}

// WebhookRejected logs a payment webhook turned away before processing.
func (l *Logger) WebhookRejected(clientIP, reason string, err error) {
	l.Warn("webhook_rejected",
		slog.String("client_ip", clientIP),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
}

// PaymentEvent logs the outcome of a processed payment event.
func (l *Logger) PaymentEvent(eventID, eventType, outcome string) {
	l.Info("payment_event",
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("outcome", outcome),
	)
}
