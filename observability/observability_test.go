package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewManagerDisabledByDefault(t *testing.T) {
	mgr, err := NewManager(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, mgr.Tracer())
	require.Nil(t, mgr.Metrics())

	_, span := mgr.Tracer().Start(context.Background(), SpanOrchestration)
	span.End()

	require.NoError(t, mgr.Shutdown(context.Background()))
}

func TestMetricsRecordingIsNilSafe(t *testing.T) {
	var metrics *Metrics

	require.NotPanics(t, func() {
		metrics.RecordOrchestration("completed", 10*time.Millisecond)
		metrics.RecordToolCall("search", "success", 5*time.Millisecond)
		metrics.RecordToolError("search", "timeout")
		metrics.RecordStreamOpened()
		metrics.RecordStreamClosed(time.Second)
		metrics.RecordStreamRecovery("recovered")
		metrics.RecordBreakerTrip("network")
	})
}

func TestNewMetricsDisabledReturnsNil(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestNewMetricsEnabledRegistersCollectors(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "test"})
	require.NoError(t, err)
	require.NotNil(t, m)

	m.RecordOrchestration("completed", 10*time.Millisecond)
	m.RecordToolCall("search", "success", 5*time.Millisecond)

	require.NotNil(t, m.Handler())
}

func TestTracingConfigValidate(t *testing.T) {
	cfg := &TracingConfig{Enabled: true, SamplingRate: 1.5}
	require.Error(t, cfg.Validate())

	cfg = &TracingConfig{Enabled: true, Endpoint: "localhost:4317", SamplingRate: 0.5}
	require.NoError(t, cfg.Validate())

	cfg = &TracingConfig{Enabled: false}
	require.NoError(t, cfg.Validate())
}

func TestConfigSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	require.Equal(t, DefaultServiceName, cfg.Tracing.ServiceName)
	require.Equal(t, 1.0, cfg.Tracing.SamplingRate)
	require.Equal(t, "/metrics", cfg.Metrics.Endpoint)
	require.Equal(t, "reasoncore", cfg.Metrics.Namespace)
}
