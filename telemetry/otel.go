package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/orchestrator-core/core"
)

// OTel implements Telemetry's span half using a real OpenTelemetry tracer.
// Unlike the logging backend's point-in-time span_start/span_end pair,
// spans here stay open between StartSpan and End, so nesting (a "turn"
// span wrapping an "invoke_llm" span) produces a proper parent/child trace.
//
// Log and RecordMetric are no-ops; pair OTel with Log or Prometheus via
// Multi for a complete backend.
type OTel struct {
	tracer trace.Tracer
}

// NewOTel creates an OTel backend using otel.Tracer(serviceName). Call
// otel.SetTracerProvider before constructing this if you want a real
// exporter; otherwise spans go to the no-op global provider.
func NewOTel(serviceName string) *OTel {
	return &OTel{tracer: otel.Tracer(serviceName)}
}

func (*OTel) Log(core.LogLevel, string, map[string]any) {}

func (*OTel) RecordMetric(string, float64, map[string]string) {}

func (o *OTel) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, Span) {
	spanCtx, span := o.tracer.Start(ctx, name)

	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, v))
	}
	span.SetAttributes(kv...)

	return spanCtx, &otelSpan{span: span}
}

func (o *OTel) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End(ok bool, errMsg string) {
	if !ok {
		s.span.SetStatus(codes.Error, errMsg)
	}
	s.span.End()
}
