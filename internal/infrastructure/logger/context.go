package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey int

const (
	loggerKey contextKey = iota
	requestIDKey
	actorIDKey
	actorRoleKey
)

// WithContext stores l in ctx
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}

// WithRequestID records the request id in ctx and stores a logger carrying it
func WithRequestID(ctx context.Context, l *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	l = l.With(zap.String("request_id", requestID))
	return WithContext(ctx, l), l
}

// WithActor records who is acting and stores a logger carrying the actor
func WithActor(ctx context.Context, l *zap.Logger, actorID, role string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, actorIDKey, actorID)
	ctx = context.WithValue(ctx, actorRoleKey, role)
	fields := []zap.Field{zap.String("actor_id", actorID)}
	if role != "" {
		fields = append(fields, zap.String("actor_role", role))
	}
	l = l.With(fields...)
	return WithContext(ctx, l), l
}

// RequestID returns the request id recorded in ctx
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ActorID returns the actor recorded in ctx
func ActorID(ctx context.Context) string {
	id, _ := ctx.Value(actorIDKey).(string)
	return id
}

// ActorRole returns the actor's role recorded in ctx
func ActorRole(ctx context.Context) string {
	role, _ := ctx.Value(actorRoleKey).(string)
	return role
}

// TraceFields returns trace_id and span_id for the active span, if any
func TraceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

// L returns the request logger from ctx with the active span attached.
//
//	logger.L(ctx).Info("GRN posted", zap.String("number", number))
func L(ctx context.Context) *zap.Logger {
	return FromContext(ctx).With(TraceFields(ctx)...)
}

// Enrich decorates a component's own logger with the request, actor and span found in ctx
func Enrich(ctx context.Context, l *zap.Logger) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return l.With(contextFields(ctx)...)
}

func contextFields(ctx context.Context) []zap.Field {
	fields := TraceFields(ctx)
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := ActorID(ctx); id != "" {
		fields = append(fields, zap.String("actor_id", id))
	}
	return fields
}
