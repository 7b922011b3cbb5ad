package obs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitTracerWithoutExporter(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{ServiceName: "kasir-test", Exporter: "none", SamplingRatio: 0.5})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = InitTracer(context.Background(), TracingConfig{Exporter: "zipkin"})
	require.ErrorContains(t, err, "unsupported tracing exporter")
}

func TestNewSampler(t *testing.T) {
	require.Equal(t, "AlwaysOnSampler", newSampler(0).Description())
	require.Equal(t, "AlwaysOnSampler", newSampler(1).Description())
	require.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased")
}
