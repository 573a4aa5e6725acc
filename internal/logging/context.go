package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	compileIDKey ctxKey = iota
	executeIDKey
)

// WithCompileID returns a context with a compile-run correlation ID set.
func WithCompileID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, compileIDKey, id)
}

// WithExecuteID returns a context with an execute-run correlation ID set.
func WithExecuteID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, executeIDKey, id)
}

// CompileID extracts the compile-run ID from the context, or "" if absent.
func CompileID(ctx context.Context) string {
	v, _ := ctx.Value(compileIDKey).(string)
	return v
}

// ExecuteID extracts the execute-run ID from the context, or "" if absent.
func ExecuteID(ctx context.Context) string {
	v, _ := ctx.Value(executeIDKey).(string)
	return v
}

// LogWith returns a logger enriched with whichever correlation IDs are set
// on the context. Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := CompileID(ctx); id != "" {
		logger = logger.With(slog.String("compile_id", id))
	}
	if id := ExecuteID(ctx); id != "" {
		logger = logger.With(slog.String("execute_id", id))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation IDs from the context into every log record. Use with
// slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and IDs appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := CompileID(ctx); v != "" {
		r.AddAttrs(slog.String("compile_id", v))
	}
	if v := ExecuteID(ctx); v != "" {
		r.AddAttrs(slog.String("execute_id", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
