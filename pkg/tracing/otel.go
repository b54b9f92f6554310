package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer for the coevolution loop
type Tracer struct {
	tracer trace.Tracer
}

// Config holds tracing configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	JaegerEndpoint string
	Environment    string
}

// NewTracer creates a new OpenTelemetry tracer backed by a Jaeger exporter
func NewTracer(config Config) (*Tracer, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{
		tracer: otel.Tracer(config.ServiceName),
	}, nil
}

// StartSpan starts a generic span
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// StartStepSpan starts a span for one coordinator run_once step
func (t *Tracer) StartStepSpan(ctx context.Context, domain string, difficulty float64) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("coevolve.domain", domain),
		attribute.Float64("coevolve.difficulty", difficulty),
	}
	return t.tracer.Start(ctx, "coordinator.run_once", trace.WithAttributes(attrs...))
}

// StartInferenceSpan starts a span for a single endpoint call
func (t *Tracer) StartInferenceSpan(ctx context.Context, role, model string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("inference.role", role),
		attribute.String("inference.model", model),
	}
	return t.tracer.Start(ctx, "inference.generate", trace.WithAttributes(attrs...))
}

// StartToolSpan starts a span for one tool-plan step execution
func (t *Tracer) StartToolSpan(ctx context.Context, toolName string, stepIndex int) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("tool.name", toolName),
		attribute.Int("tool.step_index", stepIndex),
	}
	return t.tracer.Start(ctx, "tools.execute_step", trace.WithAttributes(attrs...))
}

// StartVerifierSpan starts a span for a verification call
func (t *Tracer) StartVerifierSpan(ctx context.Context, kind string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("verifier.kind", kind),
	}
	return t.tracer.Start(ctx, "verifier.check", trace.WithAttributes(attrs...))
}

// StartRetrySpan starts a span for a retry attempt
func (t *Tracer) StartRetrySpan(ctx context.Context, role, model, reason string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("retry.role", role),
		attribute.String("retry.model", model),
		attribute.String("retry.reason", reason),
	}
	return t.tracer.Start(ctx, "inference.retry", trace.WithAttributes(attrs...))
}

// StartCircuitBreakerSpan starts a span for a circuit breaker state change
func (t *Tracer) StartCircuitBreakerSpan(ctx context.Context, role, model, state string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("circuit_breaker.role", role),
		attribute.String("circuit_breaker.model", model),
		attribute.String("circuit_breaker.state", state),
	}
	return t.tracer.Start(ctx, "inference.circuit_breaker", trace.WithAttributes(attrs...))
}

// AddSpanAttributes adds arbitrary attributes to a span
func AddSpanAttributes(span trace.Span, attrs map[string]interface{}) {
	for key, value := range attrs {
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(key, v))
		case int:
			span.SetAttributes(attribute.Int(key, v))
		case int64:
			span.SetAttributes(attribute.Int64(key, v))
		case float64:
			span.SetAttributes(attribute.Float64(key, v))
		case bool:
			span.SetAttributes(attribute.Bool(key, v))
		case []string:
			span.SetAttributes(attribute.StringSlice(key, v))
		default:
			span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
		}
	}
}

// RecordSpanError records an error on a span
func RecordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(1, err.Error()) // 1 = codes.Error
}

// RecordSpanSuccess marks a span as successful
func RecordSpanSuccess(span trace.Span) {
	span.SetStatus(2, "success") // 2 = codes.Ok
}

// RecordSpanDuration attaches a duration attribute to a span
func RecordSpanDuration(span trace.Span, duration time.Duration) {
	span.SetAttributes(attribute.Float64("duration_ms", float64(duration.Nanoseconds())/1e6))
}

// RecordSpanReward attaches reward-signal components to a span
func RecordSpanReward(span trace.Span, total, correctness, uncertainty, toolUse, novelty float64) {
	span.SetAttributes(
		attribute.Float64("reward.total", total),
		attribute.Float64("reward.correctness", correctness),
		attribute.Float64("reward.uncertainty", uncertainty),
		attribute.Float64("reward.tool_use", toolUse),
		attribute.Float64("reward.novelty", novelty),
	)
}

// Shutdown shuts down the tracer provider
func (t *Tracer) Shutdown(ctx context.Context) error {
	return otel.GetTracerProvider().(interface{ Shutdown(context.Context) error }).Shutdown(ctx)
}

// GetTraceID extracts the trace ID from a context
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID extracts the span ID from a context
func GetSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasSpanID() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}
