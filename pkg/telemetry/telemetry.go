package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Most bestrag invocations are one-shot CLI commands, so spans and metrics
// must reach the exporter before the process exits. A short batch timeout
// plus the flush in the shutdown hook covers that without forcing the MCP
// server into synchronous export.
const (
	spanBatchTimeout   = time.Second
	metricReadInterval = time.Minute
)

// ShutdownFunc flushes and releases telemetry resources. Callers should
// invoke it with a bounded context before exiting.
type ShutdownFunc func(context.Context) error

// Config selects the telemetry exporter. Supported exporters are "stdout"
// (the default), "otlp" over gRPC, and "none".
type Config struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

// Init sets up the OpenTelemetry SDK with stdout exporters.
func Init(serviceName, version string) (ShutdownFunc, error) {
	return InitWithConfig(serviceName, version, Config{Exporter: "stdout"})
}

// InitWithConfig installs global tracer and meter providers for the given
// exporter. With "none" the globals stay as no-ops, which suits one-shot
// commands where export overhead is unwanted.
func InitWithConfig(serviceName, version string, cfg Config) (ShutdownFunc, error) {
	if cfg.Exporter == "none" {
		return func(context.Context) error { return nil }, nil
	}

	spanExp, metricExp, err := buildExporters(cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(spanExp, trace.WithBatchTimeout(spanBatchTimeout)),
		trace.WithResource(res),
	)
	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExp, metric.WithInterval(metricReadInterval))),
		metric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func buildExporters(cfg Config) (trace.SpanExporter, metric.Exporter, error) {
	switch cfg.Exporter {
	case "", "stdout":
		spanExp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		metricExp, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		return spanExp, metricExp, nil
	case "otlp":
		return buildOTLPExporters(cfg)
	default:
		return nil, nil, fmt.Errorf("unknown telemetry exporter: %s", cfg.Exporter)
	}
}

func buildOTLPExporters(cfg Config) (trace.SpanExporter, metric.Exporter, error) {
	if cfg.OTLPEndpoint == "" {
		return nil, nil, fmt.Errorf("otlp endpoint is required")
	}
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	spanExp, err := otlptracegrpc.New(context.Background(), traceOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create otlp trace exporter: %w", err)
	}
	metricExp, err := otlpmetricgrpc.New(context.Background(), metricOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}
	return spanExp, metricExp, nil
}
