package logger

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is a private type to avoid collisions with other packages' context keys.
type contextKey struct{}

// loggerKey is the context key under which a scoped logger is stored.
//
//nolint:gochecknoglobals // Context key must be a shared singleton.
var loggerKey = contextKey{}

// ToContext returns a child context carrying the provided logger.
func ToContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the scoped logger from the context,
// falling back to the global logger when none is attached.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zap.SugaredLogger); ok && l != nil {
			return l
		}
	}

	return global
}

// WithName returns a context whose logger is named after the component,
// e.g. "smartmeter-install". Names nest when applied repeatedly.
func WithName(ctx context.Context, name string) context.Context {
	return ToContext(ctx, FromContext(ctx).Named(name))
}

// WithKV returns a context whose logger always logs the provided key-value pair.
func WithKV(ctx context.Context, key string, value any) context.Context {
	return ToContext(ctx, FromContext(ctx).With(key, value))
}
