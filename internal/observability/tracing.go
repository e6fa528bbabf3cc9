package observability

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// ServiceVersion is reported in the trace resource.
	ServiceVersion = "0.3.0"

	// TracerName is the instrumentation scope of every cache span.
	TracerName = "github.com/blueberrycongee/ragcache"
)

// Attribute keys shared by the resource and by lookup spans.
const (
	AttrNamespace  = attribute.Key("ragcache.namespace")
	AttrBackend    = attribute.Key("ragcache.backend")
	AttrMatchKind  = attribute.Key("ragcache.match_kind")
	AttrSimilarity = attribute.Key("ragcache.similarity")
)

// CacheAttributes describes which cache instance a process serves.
func CacheAttributes(namespace, backend string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrNamespace.String(namespace),
		AttrBackend.String(backend),
	}
}

// TracingConfig controls span export over OTLP/gRPC.
type TracingConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Endpoint      string        `yaml:"endpoint"` // host:port of the collector
	ServiceName   string        `yaml:"service_name"`
	SampleRate    float64       `yaml:"sample_rate"` // ratio of root spans kept
	Insecure      bool          `yaml:"insecure"`
	ExportTimeout time.Duration `yaml:"export_timeout"` // 0 keeps the SDK default
}

// DefaultTracingConfig returns a disabled configuration pointing at a local collector.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Endpoint:      "localhost:4317",
		ServiceName:   "ragcache",
		SampleRate:    1.0,
		Insecure:      true,
		ExportTimeout: 10 * time.Second,
	}
}

// Validate checks the exporter and sampler settings. A disabled config is
// always valid.
func (c TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}
	if math.IsNaN(c.SampleRate) || c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("tracing sample_rate must be between 0 and 1, got %v", c.SampleRate)
	}
	if c.ExportTimeout < 0 {
		return fmt.Errorf("tracing export_timeout must not be negative, got %s", c.ExportTimeout)
	}
	return nil
}

// TracerProvider owns the SDK provider, if any, and the tracer handed to the cache.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing builds a tracer for the cache. When tracing is disabled the
// tracer is a no-op and nothing global is touched. Otherwise spans are
// batched to the OTLP endpoint and the provider becomes the global one, with
// attrs added to the resource.
func InitTracing(ctx context.Context, cfg TracingConfig, attrs ...attribute.KeyValue) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{tracer: noop.NewTracerProvider().Tracer(TracerName)}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg.ServiceName, attrs)
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	var batch []sdktrace.BatchSpanProcessorOption
	if cfg.ExportTimeout > 0 {
		batch = append(batch, sdktrace.WithExportTimeout(cfg.ExportTimeout))
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, batch...),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SampleRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{provider: provider, tracer: provider.Tracer(TracerName)}, nil
}

func newResource(ctx context.Context, service string, attrs []attribute.KeyValue) (*resource.Resource, error) {
	kv := append([]attribute.KeyValue{
		semconv.ServiceName(service),
		semconv.ServiceVersion(ServiceVersion),
	}, attrs...)
	return resource.New(ctx,
		resource.WithAttributes(kv...),
		resource.WithTelemetrySDK(),
	)
}

// newSampler respects the caller's sampling decision and applies rate to
// root spans only.
func newSampler(rate float64) sdktrace.Sampler {
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

// Tracer returns the tracer to pass to the cache.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Shutdown flushes pending spans. It is a no-op for a disabled provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}
