package pantrygen

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	TracerNamePipeline   = "generation-pipeline"
	TracerNameController = "generation-controller"
	TracerNameBedrock    = "bedrock-generator"
	TracerNameOllama     = "ollama-generator"
	TracerNameOpenAI     = "openai-generator"
)

// OtelConfig is decoded with the rest of Config. The OTLP exporters read the
// endpoint and headers from the same environment variables themselves.
type OtelConfig struct {
	Endpoint       string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Headers        string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceVersion string `env:"OTEL_SERVICE_VERSION,default=0.1.0"`
	ServiceName    string `env:"OTEL_SERVICE_NAME,default=pantrygen"`
	DeployEnv      string `env:"OTEL_DEPLOY_ENV,default=development"`
}

// Enabled reports whether an OTLP collector is configured. Without one the
// global no-op providers stay in place.
func (c OtelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c OtelConfig) resource() *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.ServiceVersion),
		attribute.String("deployment.environment", c.DeployEnv),
	)
}

type otelShutdown func(ctx context.Context) error

// InitOtel registers OTLP gRPC trace and metric providers globally, so the
// pipeline and generators pick them up through otel.Tracer/otel.Meter.
func InitOtel(ctx context.Context, cfg OtelConfig) (*sdktrace.TracerProvider, *metric.MeterProvider, otelShutdown, error) {
	if !cfg.Enabled() {
		return nil, nil, nil, errors.New("otel: OTEL_EXPORTER_OTLP_ENDPOINT is not set")
	}

	traceExporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient())
	if err != nil {
		return nil, nil, nil, err
	}
	metricExporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	res := cfg.resource()
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	meterProvider := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExporter)),
		metric.WithResource(res),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(ctx context.Context) error {
		err := errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
		)
		// A second shutdown of the same exporter is harmless.
		if err != nil && err.Error() == "gRPC exporter is shutdown" {
			return nil
		}
		return err
	}
	return tracerProvider, meterProvider, shutdown, nil
}
