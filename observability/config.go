// Package observability provides OpenTelemetry tracing and Prometheus
// metrics for orchestration runs, tool executions, and stream lifecycle.
// The orchestrator records through it; the streaming engine does not call
// the stream metrics or open stream spans.
package observability

import (
	"fmt"
)

// Config configures the observability system.
type Config struct {
	Tracing TracingConfig `yaml:"tracing,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled,omitempty"`
	Endpoint       string  `yaml:"endpoint,omitempty"`
	SamplingRate   float64 `yaml:"sampling_rate,omitempty"`
	ServiceName    string  `yaml:"service_name,omitempty"`
	ServiceVersion string  `yaml:"service_version,omitempty"`
	Insecure       bool    `yaml:"insecure,omitempty"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// SetDefaults implements config.ConfigInterface for Config.
func (c *Config) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate implements config.ConfigInterface for Config.
func (c *Config) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// SetDefaults implements config.ConfigInterface for TracingConfig.
func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
}

// Validate implements config.ConfigInterface for TracingConfig.
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when tracing is enabled")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be between 0 and 1, got %f", c.SamplingRate)
	}
	return nil
}

// SetDefaults implements config.ConfigInterface for MetricsConfig.
func (c *MetricsConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "/metrics"
	}
	if c.Namespace == "" {
		c.Namespace = "reasoncore"
	}
}

// Validate implements config.ConfigInterface for MetricsConfig.
func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when metrics are enabled")
	}
	return nil
}

const (
	// DefaultServiceName identifies this service in traces absent an
	// explicit ServiceName.
	DefaultServiceName = "reasoncore"

	// Span names for the three components the reasoning loop exercises.
	SpanOrchestration = "orchestrator.execute"
	SpanToolExecution = "tool.execute"
	SpanStreamLife    = "stream.lifecycle"

	// AttrToolName tags a span/metric with the tool being invoked.
	AttrToolName = "tool.name"
	// AttrSessionID tags a span/metric with the owning reasoning session.
	AttrSessionID = "session.id"
	// AttrStreamID tags a span/metric with the owning stream.
	AttrStreamID = "stream.id"
)
