package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "agora"

// Tracer starts every span the API creates. It is replaced by InitTracing.
var Tracer trace.Tracer = otel.Tracer(instrumentationName)

// TracingConfig selects the span exporter and sampling rate.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
	// Exporter is "stdout" (the default) or "otlp".
	Exporter     string
	OTLPEndpoint string
	SamplerRatio float64
}

func (c TracingConfig) exporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	switch c.Exporter {
	case "", "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(c.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported OTEL_EXPORTER %q", c.Exporter)
	}
}

func (c TracingConfig) sampler() sdktrace.Sampler {
	switch {
	case c.SamplerRatio >= 1:
		return sdktrace.AlwaysSample()
	case c.SamplerRatio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SamplerRatio))
	}
}

// InitTracing installs W3C propagation and, when enabled, a batching tracer
// provider. The returned func flushes and stops the provider.
func InitTracing(cfg TracingConfig) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		Tracer = otel.Tracer(instrumentationName)
		return func(context.Context) error { return nil }, nil
	}

	ctx := context.Background()
	exp, err := cfg.exporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
	)
	otel.SetTracerProvider(tp)
	Tracer = tp.Tracer(instrumentationName)
	return tp.Shutdown, nil
}

// StartSpan opens an internal span. Pair it with EndSpan through a named
// error return:
//
//	ctx, span := observability.StartSpan(ctx, "engagement.like_post")
//	defer func() { observability.EndSpan(span, err) }()
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan marks span failed when err is set, then ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
