package observe

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestCorrelationIDWithoutSpan(t *testing.T) {
	t.Parallel()

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID with no span = %q, want empty", got)
	}
}

func TestCorrelationIDFromSpan(t *testing.T) {
	t.Parallel()

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	want := trace.SpanContextFromContext(ctx).TraceID().String()
	if got := CorrelationID(ctx); got != want {
		t.Errorf("CorrelationID = %q, want %q", got, want)
	}
}

func TestLoggerWithoutSpanIsDefault(t *testing.T) {
	t.Parallel()

	if Logger(context.Background()) == nil {
		t.Fatal("Logger returned nil")
	}
}
