package server

import (
	"context"
	"fmt"
	"io"
	"os"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/deploymenttheory/wfkit/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const serviceName = "wfkit"

// TracingOptions selects the span exporter for the API.
type TracingOptions struct {
	Exporter string // none, stdout or otlp
	Endpoint string // host:port of an OTLP/HTTP collector
	Version  string
	Writer   io.Writer // stdout exporter target, os.Stdout when nil
}

// SetupTracing installs a global tracer provider for opts.Exporter. The
// returned function flushes and stops it; for "none" it does nothing.
func SetupTracing(ctx context.Context, opts TracingOptions) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	var exp sdktrace.SpanExporter
	var err error
	switch opts.Exporter {
	case "", "none":
		return noop, nil
	case "stdout":
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	case "otlp":
		exp, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(opts.Endpoint),
			otlptracehttp.WithInsecure(),
		)
	default:
		return noop, fmt.Errorf("%w: unknown tracing exporter %q", errors.ErrConfigInvalid, opts.Exporter)
	}
	if err != nil {
		return noop, fmt.Errorf("creating %s span exporter: %w", opts.Exporter, err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(opts.Version),
	))
	if err != nil {
		return noop, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.WithFields(map[string]interface{}{
		"exporter": opts.Exporter,
		"endpoint": opts.Endpoint,
	}).Info("Tracing enabled")

	return tp.Shutdown, nil
}
