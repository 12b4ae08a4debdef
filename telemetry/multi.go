package telemetry

import (
	"context"

	"github.com/dshills/orchestrator-core/core"
)

// Multi fans a single Telemetry call out to every backend in order.
// StartSpan starts a span on every backend, passing the context each one
// returns on to the next and returning the last; End fans out to all of
// them. This is how a run
// combines Log (for a human-readable trail) with Prometheus (for metrics)
// and OTel (for traces) without the interpreter knowing about more than
// one Telemetry.
type Multi struct {
	backends []Telemetry
}

// NewMulti combines backends into a single Telemetry.
func NewMulti(backends ...Telemetry) Multi {
	return Multi{backends: backends}
}

func (m Multi) Log(level core.LogLevel, msg string, fields map[string]any) {
	for _, b := range m.backends {
		b.Log(level, msg, fields)
	}
}

func (m Multi) RecordMetric(name string, value float64, tags map[string]string) {
	for _, b := range m.backends {
		b.RecordMetric(name, value, tags)
	}
}

func (m Multi) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, Span) {
	spans := make([]Span, 0, len(m.backends))
	for _, b := range m.backends {
		var s Span
		ctx, s = b.StartSpan(ctx, name, attrs)
		spans = append(spans, s)
	}
	return ctx, multiSpan(spans)
}

func (m Multi) Flush(ctx context.Context) error {
	var firstErr error
	for _, b := range m.backends {
		if err := b.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type multiSpan []Span

func (s multiSpan) End(ok bool, errMsg string) {
	for _, span := range s {
		span.End(ok, errMsg)
	}
}
