// Package telemetry wires optional OpenTelemetry tracing for workflow runs.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds telemetry configuration.
type Config struct {
	// Endpoint is the OTLP gRPC collector address; empty disables export
	Endpoint      string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	Insecure      bool    `mapstructure:"insecure" yaml:"insecure" default:"true"`
	SamplingRatio float64 `mapstructure:"sampling_ratio" yaml:"sampling_ratio" default:"1" validate:"gte=0,lte=1"`
	ServiceName   string  `mapstructure:"service_name" yaml:"service_name" default:"apiflow"`
}

// TracerProvider wraps the SDK provider with lifecycle management.
type TracerProvider struct {
	l        *slog.Logger
	provider *sdktrace.TracerProvider
}

// NewTracerProvider installs a global tracer provider exporting over OTLP gRPC.
// Without an endpoint the global no-op provider stays in place.
func NewTracerProvider(ctx context.Context, l *slog.Logger, cfg Config) (*TracerProvider, error) {
	tp := &TracerProvider{l: l}

	if cfg.Endpoint == "" {
		l.Debug("Telemetry disabled, using no-op tracer provider")
		return tp, nil
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SamplingRatio)),
	)

	otel.SetTracerProvider(tp.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	l.Info("OpenTelemetry tracing enabled",
		"endpoint", cfg.Endpoint,
		"sampling_ratio", cfg.SamplingRatio,
		"service_name", cfg.ServiceName)

	return tp, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(ratio)
	}
}

// Enabled reports whether spans are exported.
func (tp *TracerProvider) Enabled() bool {
	return tp.provider != nil
}

// Tracer returns a named tracer from the active provider.
func (tp *TracerProvider) Tracer(name string) trace.Tracer {
	if tp.provider == nil {
		return otel.GetTracerProvider().Tracer(name)
	}
	return tp.provider.Tracer(name)
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := tp.provider.Shutdown(shutdownCtx); err != nil {
		tp.l.Error("Error shutting down tracer provider", "error", err)
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}
