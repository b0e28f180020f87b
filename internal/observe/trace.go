package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys for the ids carried by [WithOwner] and [WithSession].
const (
	OwnerKey   = attribute.Key("lovelisten.owner_id")
	SessionKey = attribute.Key("lovelisten.session_id")
)

type ctxKey int

const (
	ownerCtxKey ctxKey = iota
	sessionCtxKey
)

// Tracer returns the tracer used for all lovelisten spans.
func Tracer() trace.Tracer {
	return otel.Tracer(meterName)
}

// StartSpan starts a span as a child of the span in ctx. Owner and session
// ids carried by ctx are copied onto the new span.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if attrs := idAttrs(ctx); len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return Tracer().Start(ctx, name, opts...)
}

// WithOwner records the learner a request acts for. The id is set on the
// current span and on spans and loggers derived from the returned context.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return withID(ctx, ownerCtxKey, OwnerKey, ownerID)
}

// WithSession records the capture or listen session being worked on.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return withID(ctx, sessionCtxKey, SessionKey, sessionID)
}

// OwnerFromContext returns the id set by [WithOwner], or "".
func OwnerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ownerCtxKey).(string)
	return id
}

// SessionFromContext returns the id set by [WithSession], or "".
func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionCtxKey).(string)
	return id
}

func withID(ctx context.Context, k ctxKey, attr attribute.Key, id string) context.Context {
	if id == "" {
		return ctx
	}
	trace.SpanFromContext(ctx).SetAttributes(attr.String(id))
	return context.WithValue(ctx, k, id)
}

func idAttrs(ctx context.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if id := OwnerFromContext(ctx); id != "" {
		attrs = append(attrs, OwnerKey.String(id))
	}
	if id := SessionFromContext(ctx); id != "" {
		attrs = append(attrs, SessionKey.String(id))
	}
	return attrs
}

// CorrelationID returns the trace id of the span in ctx, or "" without one.
// It is sent back as the X-Correlation-ID response header.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with the trace, owner and session ids
// found in ctx attached.
func Logger(ctx context.Context) *slog.Logger {
	var args []any
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		args = append(args,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if id := OwnerFromContext(ctx); id != "" {
		args = append(args, slog.String("owner", id))
	}
	if id := SessionFromContext(ctx); id != "" {
		args = append(args, slog.String("session_id", id))
	}
	if len(args) == 0 {
		return slog.Default()
	}
	return slog.Default().With(args...)
}
