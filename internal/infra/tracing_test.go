package infra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestSetupTracing_DisabledKeepsNoopProvider(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := SetupTracing(context.Background(), TracingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.False(t, isSDK)
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestNewTracerProvider_ExportsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp, err := NewTracerProvider(exporter, 1, "test")
	require.NoError(t, err)

	_, span := tp.Tracer("restopos/test").Start(context.Background(), "order.create")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "order.create", spans[0].Name)
	assert.Contains(t, spans[0].Resource.Attributes(), semconv.ServiceName(ServiceName))
	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewTracerProvider_ZeroSampleRateDropsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp, err := NewTracerProvider(exporter, 0, "test")
	require.NoError(t, err)

	_, span := tp.Tracer("restopos/test").Start(context.Background(), "order.pay")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))
	assert.Empty(t, exporter.GetSpans())
}
