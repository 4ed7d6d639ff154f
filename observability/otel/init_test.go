package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer abc ,broken, =skip,x-team=lending")
	require.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-team":        "lending",
	}, headers)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "")
	t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "")
	cfg := ConfigFromEnv("lendingd", "dev")
	require.False(t, cfg.Enabled())
	require.True(t, cfg.Insecure)
	require.Equal(t, 1.0, cfg.SampleRatio)
	require.Equal(t, defaultMetricInterval, cfg.MetricInterval)

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "5000")
	cfg = ConfigFromEnv("lendingd", "prod")
	require.True(t, cfg.Enabled())
	require.False(t, cfg.Insecure)
	require.Equal(t, "collector:4318", cfg.Endpoint)
	require.Equal(t, 0.25, cfg.SampleRatio)
	require.Equal(t, 5*time.Second, cfg.MetricInterval)

	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "3")
	require.Equal(t, 1.0, ConfigFromEnv("lendingd", "prod").SampleRatio)
}

func TestInitWithoutExportersIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "lendingd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = Init(context.Background(), Config{})
	require.Error(t, err)
}
