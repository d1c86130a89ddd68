package otelx

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/navalha-app/navalha/libs/config"
)

// Namespace groups every navalha process under one service.namespace.
const Namespace = "navalha"

const defaultExportTimeout = 3 * time.Second

type Config struct {
	Enabled     bool
	ServiceName string
	Version     string
	Environment string

	// OTLPEndpoint is host:port. An https:// prefix on the env var turns on
	// TLS, anything else exports in plaintext.
	OTLPEndpoint  string
	Insecure      bool
	ExportTimeout time.Duration
	SampleRatio   float64
}

// ConfigFromEnv reads the OTEL_* variables. Tracing is off unless an
// exporter endpoint is configured or OTEL_ENABLED forces it on; a bad
// sampling ratio or timeout falls back to the default instead of failing
// startup.
func ConfigFromEnv(serviceName string) Config {
	raw := strings.TrimSpace(config.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""))
	endpoint, insecure := parseEndpoint(raw)

	cfg := Config{
		Enabled:       config.Bool("OTEL_ENABLED", raw != ""),
		ServiceName:   serviceName,
		Version:       config.String("SERVICE_VERSION", "dev"),
		Environment:   config.String("APP_ENV", "development"),
		OTLPEndpoint:  endpoint,
		Insecure:      insecure,
		ExportTimeout: defaultExportTimeout,
		SampleRatio:   1,
	}
	if cfg.OTLPEndpoint == "" {
		cfg.OTLPEndpoint = "localhost:4317"
	}
	if d, err := config.Duration("OTEL_EXPORTER_OTLP_TIMEOUT", defaultExportTimeout); err == nil && d > 0 {
		cfg.ExportTimeout = d
	}
	if f, err := strconv.ParseFloat(config.String("OTEL_SAMPLING_RATIO", "1"), 64); err == nil && f >= 0 && f <= 1 {
		cfg.SampleRatio = f
	}
	return cfg
}

func parseEndpoint(raw string) (string, bool) {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(raw, "https://"), "/"), false
	case strings.HasPrefix(raw, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(raw, "http://"), "/"), true
	default:
		return raw, true
	}
}

// Setup installs the W3C propagators and, when enabled, a batching OTLP/gRPC
// tracer provider. The returned func flushes pending spans.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithTimeout(cfg.ExportTimeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// newResource tags spans with the navalha namespace. OTEL_RESOURCE_ATTRIBUTES
// is merged last so operators can override any of it.
func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceNamespace(Namespace),
			semconv.ServiceVersion(cfg.Version),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithFromEnv(),
	)
}
