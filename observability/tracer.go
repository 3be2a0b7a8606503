package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps an OpenTelemetry TracerProvider so callers get a single
// Shutdown to call during teardown regardless of whether tracing is
// actually enabled.
type Tracer struct {
	provider trace.TracerProvider
	tracer   trace.Tracer
	real     bool
}

// NewTracer builds a Tracer from cfg. A disabled config yields a no-op
// provider so instrumentation call sites never need an enabled check.
func NewTracer(ctx context.Context, cfg *TracingConfig) (*Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		provider := noop.NewTracerProvider()
		return &Tracer{provider: provider, tracer: provider.Tracer(DefaultServiceName)}, nil
	}

	var opts []otlptracegrpc.Option
	opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return &Tracer{provider: tp, tracer: tp.Tracer(DefaultServiceName), real: true}, nil
}

// Start begins a span named name under ctx, returning the child context
// and the span so the caller can set attributes and End it.
func (t *Tracer) Start(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name)
}

// Shutdown flushes and releases the underlying exporter. Safe to call on a
// disabled (no-op) Tracer.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.real {
		return nil
	}
	sdktp, ok := t.provider.(*sdktrace.TracerProvider)
	if !ok {
		return nil
	}
	return sdktp.Shutdown(ctx)
}
