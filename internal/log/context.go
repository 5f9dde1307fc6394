// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	sessionIDKey
)

// correlation lists the context keys copied onto loggers, with their field names.
var correlation = []struct {
	key   ctxKey
	field string
}{
	{requestIDKey, FieldRequestID},
	{sessionIDKey, FieldSessionID},
}

func withValue(ctx context.Context, k ctxKey, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, k, v)
}

func value(ctx context.Context, k ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(k).(string)
	return v
}

// ContextWithRequestID tags ctx with the id of one outbound or inbound request.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// ContextWithSessionID tags ctx with the client session it belongs to.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return withValue(ctx, sessionIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string { return value(ctx, requestIDKey) }

func SessionIDFromContext(ctx context.Context) string { return value(ctx, sessionIDKey) }

// WithContext copies the correlation ids found in ctx onto logger. The
// logger is returned unchanged when ctx carries none.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	b := logger.With()
	added := false
	for _, c := range correlation {
		if v := value(ctx, c.key); v != "" {
			b = b.Str(c.field, v)
			added = true
		}
	}
	if !added {
		return logger
	}
	return b.Logger()
}

// WithComponentFromContext is WithComponent plus the correlation ids in ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
