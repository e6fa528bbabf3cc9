package ragcache

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/ragcache/internal/observability"
	"github.com/blueberrycongee/ragcache/pkg/embedding"
)

// TracerName is the name of the tracer used by ragcache.
const TracerName = observability.TracerName

// Option configures a Cache.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	embedder embedding.Embedder
	tracer   trace.Tracer
}

func defaultOptions() *options {
	return &options{
		logger: slog.Default(),
		tracer: otel.Tracer(TracerName),
	}
}

// WithLogger sets the logger. Store outages are logged at warning level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEmbedder sets the embedder used by LookupText and WriteText.
func WithEmbedder(e embedding.Embedder) Option {
	return func(o *options) {
		o.embedder = e
	}
}

// WithTracer overrides the tracer taken from the global OpenTelemetry provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}
