package ragcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	internalstore "github.com/blueberrycongee/ragcache/internal/store"
)

func TestOptions_Defaults(t *testing.T) {
	o := defaultOptions()
	assert.NotNil(t, o.logger)
	assert.NotNil(t, o.tracer)
	assert.Nil(t, o.embedder)

	WithLogger(nil)(o)
	WithTracer(nil)(o)
	assert.NotNil(t, o.logger)
	assert.NotNil(t, o.tracer)
}

func TestWithTracer_RecordsSpans(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(ctx) }()

	s := internalstore.NewMemoryStore(internalstore.DefaultMemoryConfig())
	defer s.Close()

	c := newTestCache(t, s, testConfig(), WithTracer(tp.Tracer(TracerName)))
	require.NoError(t, c.Write(ctx, "q", vecA, answer{Text: "x"}, 0))
	c.Lookup(ctx, "q", nil)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "ragcache.Write", spans[0].Name())
	assert.Equal(t, "ragcache.Lookup", spans[1].Name())

	var kind string
	for _, attr := range spans[1].Attributes() {
		if attr.Key == "ragcache.match_kind" {
			kind = attr.Value.AsString()
		}
	}
	assert.Equal(t, string(MatchExact), kind)
}
