// Package tracing wires OpenTelemetry span export for the services. Export is
// opt-in: without a collector endpoint the global provider stays a no-op and
// every span the code creates is free.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config describes one service's trace export.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// OTLPEndpoint is a host:port for the collector's OTLP gRPC listener.
	OTLPEndpoint string
	// SampleRate in (0, 1]; values at or above 1 sample everything.
	SampleRate float64
}

// DefaultConfig returns a local-collector, sample-everything config.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
	}
}

// Provider owns the installed tracer provider so the caller can flush it on
// shutdown.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// SetupFromEnv initializes tracing from the process environment and returns a
// shutdown func. OTLP_ENDPOINT selects the collector; when it is unset the
// returned shutdown is a no-op and nothing is exported. ENVIRONMENT and
// TRACE_SAMPLE_RATE refine the config when present. A returned error means
// the exporter could not be built; the caller decides whether that is fatal
// (for the services here it is not, a missing collector must never take a
// reminder pipeline down).
func SetupFromEnv(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	endpoint := os.Getenv("OTLP_ENDPOINT")
	if endpoint == "" {
		return noop, nil
	}

	cfg := DefaultConfig(serviceName)
	cfg.OTLPEndpoint = endpoint
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}
	if raw := os.Getenv("TRACE_SAMPLE_RATE"); raw != "" {
		if rate, err := strconv.ParseFloat(raw, 64); err == nil && rate > 0 {
			cfg.SampleRate = rate
		}
	}

	provider, err := Init(ctx, cfg)
	if err != nil {
		return noop, err
	}
	return provider.Shutdown, nil
}

// Init builds the OTLP gRPC exporter for cfg and installs the global tracer
// provider and W3C trace-context/baggage propagator.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1.0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tp: tp}, nil
}

// Shutdown flushes and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp != nil {
		return p.tp.Shutdown(ctx)
	}
	return nil
}
