package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

// tagsToAttrs converts "key", "value" pairs into OTEL attributes, ignoring a
// trailing unmatched key.
func tagsToAttrs(tags []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		attrs = append(attrs, attribute.String(tags[i], tags[i+1]))
	}
	return attrs
}

type (
	clueLogger struct{}

	clueMetrics struct {
		meter metric.Meter
	}

	clueTracer struct {
		tracer trace.Tracer
	}

	clueSpan struct {
		span trace.Span
	}
)

// NewClue constructs a Bundle that delegates logging to goa.design/clue/log
// and metrics/tracing to the global OpenTelemetry providers. Callers must
// configure those providers (e.g. via clue.ConfigureOpenTelemetry) before use.
func NewClue() Bundle {
	return Bundle{
		Log:     clueLogger{},
		Metrics: clueMetrics{meter: otel.Meter("github.com/rudi77/taskforge")},
		Tracer:  clueTracer{tracer: otel.Tracer("github.com/rudi77/taskforge")},
	}
}

func (clueLogger) Debug(ctx context.Context, msg string, kv ...any) {
	log.Debug(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, toClueKV(kv)...)...)
}

func (clueLogger) Info(ctx context.Context, msg string, kv ...any) {
	log.Info(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, toClueKV(kv)...)...)
}

func (clueLogger) Warn(ctx context.Context, msg string, kv ...any) {
	fields := append([]log.Fielder{log.KV{K: "msg", V: msg}, log.KV{K: "severity", V: "warning"}}, toClueKV(kv)...)
	log.Warn(ctx, fields...)
}

func (clueLogger) Error(ctx context.Context, msg string, kv ...any) {
	log.Error(ctx, nil, append([]log.Fielder{log.KV{K: "msg", V: msg}}, toClueKV(kv)...)...)
}

func toClueKV(kv []any) []log.Fielder {
	fields := make([]log.Fielder, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		fields = append(fields, log.KV{K: key, V: kv[i+1]})
	}
	return fields
}

func (m clueMetrics) IncCounter(name string, value float64, tags ...string) {
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

func (m clueMetrics) RecordTimer(name string, d time.Duration, tags ...string) {
	hist, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	hist.Record(context.Background(), d.Seconds(), metric.WithAttributes(tagsToAttrs(tags)...))
}

func (m clueMetrics) RecordGauge(name string, value float64, tags ...string) {
	// OTEL has no synchronous gauge instrument; approximate with a histogram,
	// matching the teacher's fallback.
	hist, err := m.meter.Float64Histogram(name + "_gauge")
	if err != nil {
		return
	}
	hist.Record(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

func (t clueTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, clueSpan{span: span}
}

func (s clueSpan) End(opts ...trace.SpanEndOption)             { s.span.End(opts...) }
func (s clueSpan) AddEvent(name string, attrs ...any)           { s.span.AddEvent(name) }
func (s clueSpan) SetStatus(code codes.Code, desc string)       { s.span.SetStatus(code, desc) }
func (s clueSpan) RecordError(err error, opts ...trace.EventOption) { s.span.RecordError(err, opts...) }
