package telemetry

import (
	"context"

	"github.com/dshills/orchestrator-core/core"
)

// Null discards everything. Useful for unit tests that exercise the
// interpreter without caring about observability output.
type Null struct{}

// NewNull returns a Telemetry that does nothing.
func NewNull() Null { return Null{} }

func (Null) Log(core.LogLevel, string, map[string]any) {}

func (Null) RecordMetric(string, float64, map[string]string) {}

func (Null) StartSpan(ctx context.Context, _ string, _ map[string]string) (context.Context, Span) {
	return ctx, nullSpan{}
}

func (Null) Flush(context.Context) error { return nil }

type nullSpan struct{}

func (nullSpan) End(bool, string) {}
