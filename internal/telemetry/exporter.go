package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ExporterConfig selects where spans are shipped.
type ExporterConfig struct {
	// Endpoint is the OTLP collector address, e.g. "localhost:4317".
	Endpoint string

	// Protocol is "grpc" (default) or "http".
	Protocol string

	// Insecure disables TLS on the exporter connection.
	Insecure bool

	// Headers are attached to every export request (vendor API keys).
	Headers map[string]string

	// ServiceVersion tags the resource; empty means "dev".
	ServiceVersion string
}

// Exporter owns an installed OTLP trace pipeline. Creating one replaces
// the global tracer provider, so spans started anywhere in the process
// flow through it.
type Exporter struct {
	provider *sdktrace.TracerProvider
}

// NewExporter builds the OTLP exporter and installs it as the global
// provider. Callers must Close it to flush buffered spans.
func NewExporter(ctx context.Context, cfg ExporterConfig) (*Exporter, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)

	switch cfg.Protocol {
	case "", "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		exp, err = otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		exp, err = otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported telemetry protocol %q (want grpc or http)", cfg.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	version := cfg.ServiceVersion
	if version == "" {
		version = "dev"
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", "pilot"),
		attribute.String("service.version", version),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return &Exporter{provider: provider}, nil
}

// Close flushes and shuts down the pipeline.
func (e *Exporter) Close(ctx context.Context) error {
	if e == nil || e.provider == nil {
		return nil
	}
	return e.provider.Shutdown(ctx)
}
