package obs

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// OTELConfig is the otel section of the daemon config.
type OTELConfig struct {
	Enable         bool   `mapstructure:"enable"`
	Endpoint       string `mapstructure:"endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
	// Sampler is always, never or ratio. Ratio sampling follows the parent
	// span's decision and samples roots at SampleRatio.
	Sampler     string  `mapstructure:"sampler"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Tracing owns the tracer provider installed by SetupTracing.
type Tracing struct {
	provider *sdktrace.TracerProvider
}

// SetupTracing always installs the W3C propagator so Kafka headers and
// inbound console requests carry trace context. An exporting provider is
// installed only when cfg.Enable is set.
func SetupTracing(ctx context.Context, cfg OTELConfig) (*Tracing, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	if !cfg.Enable {
		return &Tracing{}, nil
	}
	sampler, err := Sampler(cfg)
	if err != nil {
		return nil, err
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(2*time.Second)),
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(Resource(cfg)),
	)
	otel.SetTracerProvider(tp)
	return &Tracing{provider: tp}, nil
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

func Sampler(cfg OTELConfig) (sdktrace.Sampler, error) {
	switch strings.ToLower(cfg.Sampler) {
	case "always":
		return sdktrace.AlwaysSample(), nil
	case "never":
		return sdktrace.NeverSample(), nil
	case "", "ratio":
		r := cfg.SampleRatio
		if r < 0 {
			r = 0
		}
		if r > 1 {
			r = 1
		}
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(r)), nil
	}
	return nil, fmt.Errorf("unknown otel sampler %q", cfg.Sampler)
}

// Resource describes this daemon. The version falls back to the module
// version recorded in the binary.
func Resource(cfg OTELConfig) *resource.Resource {
	name := cfg.ServiceName
	if name == "" {
		name = "webinspector"
	}
	version := cfg.ServiceVersion
	if version == "" {
		version = buildVersion()
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
		semconv.ServiceVersion(version),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	if host, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostName(host), semconv.ServiceInstanceID(fmt.Sprintf("%s-%d", host, os.Getpid())))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func buildVersion() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		return bi.Main.Version
	}
	return "(devel)"
}
