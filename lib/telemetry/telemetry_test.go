package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWithoutEndpoints(t *testing.T) {
	tel, err := Setup(context.Background(), "secondhand-race-test", Config{})
	require.NoError(t, err)
	require.NotNil(t, tel.TracerProvider)
	require.NotNil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestMetricInterval(t *testing.T) {
	require.Equal(t, "5s", Config{}.metricInterval().String())
	require.Equal(t, "1.5s", Config{MetricInterval: 1.5}.metricInterval().String())
}

func TestConnProtocol(t *testing.T) {
	kind, endpoint := OtlpConnConfig{
		GrpcEndpoint: "http://localhost:4317",
		HttpEndpoint: "http://localhost:4318",
	}.protocol()
	require.Equal(t, "grpc", kind)
	require.Equal(t, "http://localhost:4317", endpoint)

	kind, endpoint = OtlpConnConfig{HttpEndpoint: "http://localhost:4318"}.protocol()
	require.Equal(t, "http", kind)
	require.Equal(t, "http://localhost:4318", endpoint)

	require.False(t, OtlpConnConfig{}.enabled())
}

func TestSampler(t *testing.T) {
	half := 0.5
	require.Contains(t, Config{}.sampler().Description(), "AlwaysOnSampler")
	require.Contains(t, Config{TraceRatio: &half}.sampler().Description(), "TraceIDRatioBased{0.5}")
}
