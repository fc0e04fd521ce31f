package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SpanRecorder is an in-process exporter that keeps every finished span so
// tests can assert on what the request path touched.
type SpanRecorder struct {
	mu    sync.RWMutex
	spans []sdktrace.ReadOnlySpan
}

func NewSpanRecorder() *SpanRecorder {
	return &SpanRecorder{}
}

func (r *SpanRecorder) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.spans = append(r.spans, spans...)
	return nil
}

func (r *SpanRecorder) Shutdown(context.Context) error {
	return nil
}

func (r *SpanRecorder) Spans() []sdktrace.ReadOnlySpan {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]sdktrace.ReadOnlySpan, len(r.spans))
	copy(out, r.spans)
	return out
}

func (r *SpanRecorder) SpansByName(name string) []sdktrace.ReadOnlySpan {
	return r.filter(func(s sdktrace.ReadOnlySpan) bool { return s.Name() == name })
}

// SpansByOperation matches the "operation" attribute set by the store and
// publisher layers, e.g. "database.write".
func (r *SpanRecorder) SpansByOperation(operation string) []sdktrace.ReadOnlySpan {
	return r.filter(func(s sdktrace.ReadOnlySpan) bool {
		for _, attr := range s.Attributes() {
			if attr.Key == "operation" && attr.Value.AsString() == operation {
				return true
			}
		}
		return false
	})
}

func (r *SpanRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.spans = nil
}

func (r *SpanRecorder) filter(keep func(sdktrace.ReadOnlySpan) bool) []sdktrace.ReadOnlySpan {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []sdktrace.ReadOnlySpan
	for _, s := range r.spans {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// InitTestTracing installs a synchronous provider feeding recorder, so spans
// are visible as soon as they end.
func InitTestTracing(serviceName string, recorder *SpanRecorder) *sdktrace.TracerProvider {
	tp := newProvider(serviceName, "test", sdktrace.WithSyncer(recorder))
	otel.SetTracerProvider(tp)
	return tp
}
