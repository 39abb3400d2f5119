package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the otel meter and tracer used by the processor.
// The zero value is usable and records nothing.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	runCounter     otelmetric.Int64Counter
	taskCounter    otelmetric.Int64Counter
	taskDuration   otelmetric.Float64Histogram
}

// New wires the Prometheus metric exporter and, when jaegerEndpoint is set,
// a batching Jaeger span exporter.
func New(serviceName, jaegerEndpoint string) *Observability {
	o := &Observability{}

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
	} else {
		o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
		otel.SetMeterProvider(o.meterProvider)
		meter := o.meterProvider.Meter(serviceName)

		o.runCounter, _ = meter.Int64Counter(
			"processor.runs",
			otelmetric.WithDescription("Number of queue processor runs"),
		)
		o.taskCounter, _ = meter.Int64Counter(
			"processor.tasks",
			otelmetric.WithDescription("Number of recomputation tasks processed"),
		)
		o.taskDuration, _ = meter.Float64Histogram(
			"processor.task.duration",
			otelmetric.WithDescription("Task processing duration"),
			otelmetric.WithUnit("ms"),
		)
	}

	if jaegerEndpoint != "" {
		spanExporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
		if err != nil {
			log.Printf("Failed to create Jaeger exporter: %v", err)
		} else {
			o.tracerProvider = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(spanExporter),
				sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
			)
			otel.SetTracerProvider(o.tracerProvider)
		}
	}

	o.tracer = otel.Tracer(serviceName)
	return o
}

// StartSpan starts a span; with no tracer provider configured it is a no-op span.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordRun(ctx context.Context, success bool) {
	if o == nil || o.runCounter == nil {
		return
	}
	o.runCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.Bool("success", success)))
}

func (o *Observability) RecordTask(ctx context.Context, duration time.Duration, status string) {
	if o == nil || o.taskCounter == nil {
		return
	}
	o.taskCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("status", status)))
	o.taskDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("status", status),
	))
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
