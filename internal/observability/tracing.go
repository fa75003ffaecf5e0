// Package observability wires OpenTelemetry tracing and Prometheus metrics
// for verification runs.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "provify"

var (
	tracerMu   sync.Mutex
	shutdownFn = func(context.Context) error { return nil }
)

// InitTracing installs the global tracer provider. Exporter is "none" (or
// empty) or "stdout"; w defaults to os.Stdout for the stdout exporter. The
// returned func flushes and stops the provider.
func InitTracing(exporter string, w io.Writer) (func(context.Context) error, error) {
	tracerMu.Lock()
	defer tracerMu.Unlock()

	switch strings.ToLower(strings.TrimSpace(exporter)) {
	case "", "none":
		otel.SetTracerProvider(noop.NewTracerProvider())
		shutdownFn = func(context.Context) error { return nil }
	case "stdout":
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exp),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		otel.SetTracerProvider(tp)
		shutdownFn = tp.Shutdown
	default:
		return nil, fmt.Errorf("unknown trace exporter %q (want none or stdout)", exporter)
	}
	return shutdownFn, nil
}

// StartSpan starts a span on the global provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
