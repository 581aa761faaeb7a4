package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()), "falls back to a no-op logger")

	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	FromContext(ctx).Info("stored")
	assert.Equal(t, 1, logs.Len())
}

func TestWithRequestIDAndActor(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, _ := WithRequestID(context.Background(), zap.New(core), "req-42")
	ctx, _ = WithActor(ctx, FromContext(ctx), "keeper-7", "STORE_KEEPER")

	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Equal(t, "keeper-7", ActorID(ctx))
	assert.Equal(t, "STORE_KEEPER", ActorRole(ctx))

	FromContext(ctx).Info("issued")
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "keeper-7", fields["actor_id"])
	assert.Equal(t, "STORE_KEEPER", fields["actor_role"])
}

func TestWithActor_NoRole(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	_, l := WithActor(context.Background(), zap.New(core), "crew-1", "")

	l.Info("returned")
	assert.NotContains(t, logs.All()[0].ContextMap(), "actor_role")
}

func TestContextAccessors_Empty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, ActorID(ctx))
	assert.Empty(t, ActorRole(ctx))
	assert.Nil(t, TraceFields(ctx))
}

func TestL_AddsSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "post-grn")
	defer span.End()

	core, logs := observer.New(zapcore.InfoLevel)
	ctx, _ = WithRequestID(ctx, zap.New(core), "req-1")

	L(ctx).Info("with span")
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestEnrich(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-9")
	ctx, _ = WithActor(ctx, zap.NewNop(), "approver-2", "ENGINEER")

	Enrich(ctx, zap.New(core)).Info("notified")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "approver-2", fields["actor_id"])
	assert.NotContains(t, fields, "trace_id")

	assert.NotPanics(t, func() { Enrich(ctx, nil).Info("nil logger") })
}
