package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the counters and histograms for orchestration runs,
// tool executions, and stream lifecycle.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	orchestrationRuns     *prometheus.CounterVec
	orchestrationDuration *prometheus.HistogramVec

	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolErrors       *prometheus.CounterVec

	streamsOpened    *prometheus.CounterVec
	streamDuration   *prometheus.HistogramVec
	streamRecoveries *prometheus.CounterVec
	streamsActive    prometheus.Gauge
	breakerTrips     *prometheus.CounterVec
}

// NewMetrics builds a Metrics instance from cfg. A disabled or nil cfg
// returns (nil, nil); every Record method is a no-op on a nil *Metrics.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}
	m.initOrchestrationMetrics()
	m.initToolMetrics()
	m.initStreamMetrics()
	return m, nil
}

func (m *Metrics) initOrchestrationMetrics() {
	m.orchestrationRuns = m.counterVec("orchestration", "runs_total",
		"Total orchestration runs by terminal outcome", "outcome")
	m.orchestrationDuration = m.histogramVec("orchestration", "duration_seconds",
		"Orchestration wall-clock duration", prometheus.DefBuckets)
}

func (m *Metrics) initToolMetrics() {
	m.toolCalls = m.counterVec("tool", "calls_total",
		"Total tool invocations by tool name and terminal status", "tool_name", "status")
	m.toolCallDuration = m.histogramVec("tool", "call_duration_seconds",
		"Tool execution duration", prometheus.ExponentialBuckets(0.01, 2, 12), "tool_name")
	m.toolErrors = m.counterVec("tool", "errors_total",
		"Total tool execution errors by failure category", "tool_name", "category")
}

func (m *Metrics) initStreamMetrics() {
	m.streamsOpened = m.counterVec("stream", "opened_total", "Total streams opened")
	m.streamDuration = m.histogramVec("stream", "duration_seconds",
		"Stream lifetime from open to terminal state", prometheus.DefBuckets)
	m.streamRecoveries = m.counterVec("stream", "recoveries_total",
		"Total stream error-recovery attempts by outcome", "outcome")
	m.streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.config.Namespace,
		Subsystem: "stream",
		Name:      "active",
		Help:      "Currently active streams",
	})
	m.registry.MustRegister(m.streamsActive)

	m.breakerTrips = m.counterVec("breaker", "trips_total",
		"Total circuit breaker trips by category", "category")
}

func (m *Metrics) counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	v := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
	m.registry.MustRegister(v)
	return v
}

func (m *Metrics) histogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	v := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
	m.registry.MustRegister(v)
	return v
}

// RecordOrchestration records one completed orchestrator.Orchestrate call.
func (m *Metrics) RecordOrchestration(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.orchestrationRuns.WithLabelValues(outcome).Inc()
	m.orchestrationDuration.WithLabelValues().Observe(duration.Seconds())
}

// RecordToolCall records one tool execution result.
func (m *Metrics) RecordToolCall(toolName, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName, status).Inc()
	m.toolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// RecordToolError records a tool execution failure by category.
func (m *Metrics) RecordToolError(toolName, category string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(toolName, category).Inc()
}

// RecordStreamOpened records a stream transitioning into Active.
func (m *Metrics) RecordStreamOpened() {
	if m == nil {
		return
	}
	m.streamsOpened.WithLabelValues().Inc()
	m.streamsActive.Inc()
}

// RecordStreamClosed records a stream reaching a terminal state.
func (m *Metrics) RecordStreamClosed(duration time.Duration) {
	if m == nil {
		return
	}
	m.streamDuration.WithLabelValues().Observe(duration.Seconds())
	m.streamsActive.Dec()
}

// RecordStreamRecovery records one recovery attempt outcome ("recovered" or
// "terminated").
func (m *Metrics) RecordStreamRecovery(outcome string) {
	if m == nil {
		return
	}
	m.streamRecoveries.WithLabelValues(outcome).Inc()
}

// RecordBreakerTrip records a circuit breaker category transitioning Open.
func (m *Metrics) RecordBreakerTrip(category string) {
	if m == nil {
		return
	}
	m.breakerTrips.WithLabelValues(category).Inc()
}

// Handler returns the http.Handler serving this Metrics' Prometheus
// registry in the exposition format, for mounting at MetricsConfig.Endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
