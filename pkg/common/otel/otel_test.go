package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/workielk/workie/pkg/common/logger"
)

func TestEndpointExcluderDropsExcludedRoutes(t *testing.T) {
	sampler := newEndpointExcluder(map[string]struct{}{"/v1/health": {}}, 1)

	dropped := sampler.ShouldSample(sdktrace.SamplingParameters{
		Attributes: []attribute.KeyValue{semconv.HTTPTargetKey.String("/v1/health")},
	})
	assert.Equal(t, sdktrace.Drop, dropped.Decision)

	kept := sampler.ShouldSample(sdktrace.SamplingParameters{
		Attributes: []attribute.KeyValue{attribute.String("url.path", "/v1/progress/abc")},
	})
	assert.Equal(t, sdktrace.RecordAndSample, kept.Decision)
}

func TestInitTelemetryWithoutExporter(t *testing.T) {
	tel, cleanup, err := InitTelemetry(logger.Noop(), Config{ServiceName: "workie-test", Probability: 1})
	require.NoError(t, err)
	t.Cleanup(func() { cleanup(context.Background()) })

	ctx, span := AddSpan(context.Background(), tel.TracerProvider.Tracer("test"), "op")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
	assert.Equal(t, "00000000000000000000000000000000", GetTraceID(context.Background()))
}
