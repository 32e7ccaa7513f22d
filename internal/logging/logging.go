// Package logging carries the request-scoped slog.Logger from the HTTP
// middleware through the office hour services, the calendar feed and the
// session janitor.
package logging

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// ContextWithLogger returns ctx carrying logger. A nil logger leaves ctx unchanged.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger attached by ContextWithLogger, or nil.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return nil
}

// OrDefault returns the context logger, falling back to base and then to
// slog.Default.
func OrDefault(ctx context.Context, base *slog.Logger) *slog.Logger {
	if logger := FromContext(ctx); logger != nil {
		return logger
	}
	if base != nil {
		return base
	}
	return slog.Default()
}
