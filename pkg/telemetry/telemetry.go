// Package telemetry installs the OpenTelemetry tracer pkg/engine spans
// every scenario/step attempt through. It is deliberately optional:
// spec.md's Non-goals exclude a required observability backend, so an
// unconfigured Setup leaves the Engine fully functional against the
// default no-op global provider.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/probitas/probitas/pkg/telemetry"

// Options configures the OTLP/HTTP exporter Setup installs.
type Options struct {
	// Endpoint is the collector's host:port. Empty disables telemetry
	// entirely — Setup installs nothing and hands back the process's
	// existing global tracer.
	Endpoint    string
	ServiceName string
	Insecure    bool
	Headers     map[string]string
}

// Setup installs an OTLP/HTTP trace exporter as the global
// TracerProvider and returns a Tracer for pkg/engine.WithTracer plus a
// Shutdown func that flushes pending spans and closes the exporter.
func Setup(ctx context.Context, opts Options) (tracer trace.Tracer, shutdown func(context.Context) error, err error) {
	if opts.Endpoint == "" {
		return otel.Tracer(tracerName), func(context.Context) error { return nil }, nil
	}

	exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracehttp.WithHeaders(opts.Headers))
	}

	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("building otlp exporter: %w", err)
	}

	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "probitas"
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("building resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Tracer(tracerName), provider.Shutdown, nil
}
