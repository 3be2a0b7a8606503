package observability

import (
	"context"
	"fmt"
	"log/slog"
)

// Manager owns the lifecycle of the Tracer and Metrics, so callers have a
// single construct/shutdown pair regardless of which pieces are enabled.
type Manager struct {
	config  *Config
	tracer  *Tracer
	metrics *Metrics
}

// NewManager builds tracing and metrics from cfg. A nil cfg yields a
// Manager whose Tracer is a no-op and whose Metrics is nil.
func NewManager(ctx context.Context, cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	m := &Manager{config: cfg}

	tracer, err := NewTracer(ctx, &cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	m.tracer = tracer
	if cfg.Tracing.Enabled {
		slog.Info("observability: tracing initialized",
			"endpoint", cfg.Tracing.Endpoint,
			"sampling_rate", cfg.Tracing.SamplingRate,
		)
	}

	metrics, err := NewMetrics(&cfg.Metrics)
	if err != nil {
		_ = m.tracer.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	m.metrics = metrics
	if cfg.Metrics.Enabled {
		slog.Info("observability: metrics initialized",
			"endpoint", cfg.Metrics.Endpoint,
			"namespace", cfg.Metrics.Namespace,
		)
	}

	return m, nil
}

// Tracer returns the Manager's Tracer; never nil.
func (m *Manager) Tracer() *Tracer { return m.tracer }

// Metrics returns the Manager's Metrics, or nil if metrics are disabled.
// Every Metrics method tolerates a nil receiver, so callers can record
// through this value without a nil check.
func (m *Manager) Metrics() *Metrics { return m.metrics }

// Shutdown releases the tracer exporter. Safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.tracer != nil {
		return m.tracer.Shutdown(ctx)
	}
	return nil
}
