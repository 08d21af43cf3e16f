// Package observability installs the OpenTelemetry tracer provider used by
// otelgin, the GORM tracing plugin and the service spans.
package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"google.golang.org/grpc/credentials"

	"github.com/tbourn/go-review-reply-backend/internal/config"
)

// exportTimeout bounds a single OTLP export so a dead collector cannot stall
// the batcher.
const exportTimeout = 10 * time.Second

// ServiceInfo describes the running process on every exported span.
type ServiceInfo struct {
	Version            string
	Environment        string // gin mode: debug|release|test
	GenerationProvider string
	QuotaBackend       string
}

// ShutdownFunc flushes pending spans and stops the provider.
type ShutdownFunc func(context.Context) error

// test seams
var (
	newOTLPClient = otlptracegrpc.NewClient

	newOTLPExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, client)
	}

	newServiceResourceFn = func(ctx context.Context, serviceName string, info ServiceInfo) (*resource.Resource, error) {
		return resource.New(ctx, resource.WithAttributes(serviceAttributes(serviceName, info)...))
	}
)

func noopShutdown(context.Context) error { return nil }

// Setup configures tracing from cfg. When tracing is disabled the returned
// shutdown is a no-op and the global provider is left untouched. Globals are
// only replaced once every component was built.
func Setup(ctx context.Context, cfg config.OTELConfig, info ServiceInfo) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(exportTimeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	exp, err := newOTLPExporterFn(ctx, newOTLPClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := newServiceResourceFn(ctx, cfg.ServiceName, info)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return errors.Join(tp.ForceFlush(ctx), tp.Shutdown(ctx))
	}, nil
}

// serviceAttributes builds the resource attributes; empty values are skipped.
func serviceAttributes(serviceName string, info ServiceInfo) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if info.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(info.Version))
	}
	if info.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(info.Environment))
	}
	if info.GenerationProvider != "" {
		attrs = append(attrs, attribute.String("genai.provider", info.GenerationProvider))
	}
	if info.QuotaBackend != "" {
		attrs = append(attrs, attribute.String("quota.backend", info.QuotaBackend))
	}
	return attrs
}
