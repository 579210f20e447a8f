// Package logging provides structured, trace-aware logging on top of logrus.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// Logger wraps a logrus entry bound to a service name.
type Logger struct {
	entry *logrus.Entry
}

// New creates a logger for service. level is a logrus level name ("debug", "info", ...);
// format is "json" or "text".
func New(service, level, format string) *Logger {
	return NewWithWriter(service, level, format, os.Stdout)
}

// NewWithWriter is New with an explicit output.
func NewWithWriter(service, level, format string, out io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339Nano})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	return &Logger{entry: base.WithField("service", service)}
}

// NewDiscard returns a logger that drops everything; handy in tests.
func NewDiscard() *Logger {
	return NewWithWriter("test", "panic", "json", io.Discard)
}

// WithField returns a child logger carrying key=value on every line.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) with(ctx context.Context, fields map[string]interface{}) *logrus.Entry {
	e := l.entry
	if ctx != nil {
		if traceID := GetTraceID(ctx); traceID != "" {
			e = e.WithField("trace_id", traceID)
		}
	}
	if len(fields) > 0 {
		e = e.WithFields(logrus.Fields(fields))
	}
	return e
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	l.with(ctx, fields).Debug(msg)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	l.with(ctx, fields).Info(msg)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	l.with(ctx, fields).Warn(msg)
}

// Error logs at error level with the error attached.
func (l *Logger) Error(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	e := l.with(ctx, fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

// LogRequest records one served HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}
	e := l.with(ctx, fields)
	switch {
	case status >= 500:
		e.Error("http request")
	case status >= 400:
		e.Warn("http request")
	default:
		e.Info("http request")
	}
}

// LogSecurityEvent records an event worth auditing (throttling, rejected input).
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	l.with(ctx, fields).WithField("security_event", event).Warn("security event")
}

// =============================================================================
// Trace IDs
// =============================================================================

// NewTraceID generates a fresh trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores traceID in ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the trace id stored in ctx, if any.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}
