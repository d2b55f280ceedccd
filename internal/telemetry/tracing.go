// Package telemetry configures OpenTelemetry tracing for outbound API calls.
//
// Custom span attributes use the `portal.` prefix.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/jrsteele09/go-billing-portal"
)

// Tracer returns the package-level tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider installs an OTLP gRPC trace provider. An empty endpoint
// leaves the global noop provider in place.
// The returned shutdown function must be called on exit.
func InitTraceProvider(ctx context.Context, endpoint, serviceName, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// StartAPICallSpan opens a client span for one backend call.
func StartAPICallSpan(ctx context.Context, method, endpoint string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "api.call",
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("portal.endpoint", endpoint),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndAPICallSpan records the outcome and ends the span.
func EndAPICallSpan(span trace.Span, status int, outcome string, succeeded bool) {
	span.SetAttributes(
		attribute.Int("http.response.status_code", status),
		attribute.String("portal.outcome", outcome),
	)
	if !succeeded {
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
}
