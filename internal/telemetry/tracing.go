// -------------------------------------------------------------------------------
// Tracing - OpenTelemetry Setup and Helpers
//
// Author: Alex Freidah
//
// OpenTelemetry tracer initialization with an OTLP/gRPC exporter, plus helpers
// for starting spans and building common attribute sets. When tracing is
// disabled the provider is left as the default no-op and all helpers are safe
// to call.
// -------------------------------------------------------------------------------

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/afreidah/origin-gateway/internal/config"
)

const tracerName = "github.com/afreidah/origin-gateway"

// Common span attribute keys.
const (
	AttrRequestID = attribute.Key("origin.request_id")
	AttrPlane     = attribute.Key("origin.plane")
	AttrHash      = attribute.Key("origin.hash")
	AttrHashMod   = attribute.Key("origin.hash_mod")
	AttrContainer = attribute.Key("origin.container_index")
	AttrAccount   = attribute.Key("origin.account")
	AttrObject    = attribute.Key("origin.object_name")
	AttrOperation = attribute.Key("origin.backend_operation")
)

// InitTracer configures the global tracer provider from config. Returns a
// shutdown function that flushes pending spans; with tracing disabled both
// the provider and the shutdown function are no-ops.
func InitTracer(ctx context.Context, cfg config.TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("origin-gateway"),
		semconv.ServiceVersion(Version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer returns the gateway's named tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span with the given name and attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// RequestAttributes builds the common attribute set for an HTTP request span.
func RequestAttributes(method, path, host, plane, remote string) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(method),
		semconv.URLPath(path),
		semconv.ServerAddress(host),
		AttrPlane.String(plane),
		semconv.ClientAddress(remote),
	}
}

// RouteAttributes builds the attribute set for a resolved CDN route.
func RouteAttributes(hash string, hashMod, containerIndex int, objectName string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrHash.String(hash),
		AttrHashMod.Int(hashMod),
		AttrContainer.Int(containerIndex),
		AttrObject.String(objectName),
	}
}
