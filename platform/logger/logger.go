// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// LeadIDKey is the context key for the lead being processed
	LeadIDKey contextKey = "lead_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and lead_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if leadID, ok := ctx.Value(LeadIDKey).(string); ok && leadID != "" {
		newLogger = newLogger.WithLeadID(leadID)
	}

	return newLogger
}

// WithLeadID returns a logger scoped to one lead.
func (l *Logger) WithLeadID(leadID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("lead_id", leadID)),
	}
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

// JobStart logs the start of a background job run.
func (l *Logger) JobStart(job string) {
	l.Info("job_start", slog.String("job", job))
}

// JobEnd logs the end of a background job run with its tick counters.
func (l *Logger) JobEnd(job string, attrs ...any) {
	args := append([]any{slog.String("job", job)}, attrs...)
	l.Info("job_end", args...)
}

// JobError logs a background job failure that does not stop the loop.
func (l *Logger) JobError(job string, err error) {
	l.Error("job_error",
		slog.String("job", job),
		slog.String("error", err.Error()),
	)
}

// SendOutcome logs the result of one outbound email attempt.
func (l *Logger) SendOutcome(leadID, stage string, success bool, err error) {
	if success {
		l.Info("send_outcome",
			slog.String("lead_id", leadID),
			slog.String("stage", stage),
			slog.Bool("success", true),
		)
		return
	}
	l.Warn("send_outcome",
		slog.String("lead_id", leadID),
		slog.String("stage", stage),
		slog.Bool("success", false),
		slog.String("error", err.Error()),
	)
}

// ReplyDetected logs a detected inbound reply on a lead's thread.
func (l *Logger) ReplyDetected(leadID, threadID string) {
	l.Info("reply_detected",
		slog.String("lead_id", leadID),
		slog.String("thread_id", threadID),
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
