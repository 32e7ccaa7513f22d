package http

import (
	"context"
	"log/slog"

	"github.com/WilliamHangXu/EasyOH/internal/application"
	"github.com/WilliamHangXu/EasyOH/internal/logging"
)

type contextKey string

const principalContextKey contextKey = "principal"

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger prefers the request logger installed by RequestLogger and tags
// it with the handler and operation names.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := logging.OrDefault(ctx, fallback)

	pairs := []any{"handler", handlerName, "operation", operation}
	if principal, ok := PrincipalFromContext(ctx); ok {
		pairs = append(pairs, "actor_id", principal.UserID)
	}
	return logger.With(append(pairs, attrs...)...)
}
