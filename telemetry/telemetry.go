// Package telemetry provides the observability backends the effect
// interpreter drives: structured logging, metrics, and tracing spans.
// Every EffectKind in core that isn't state I/O (EffLog, EffRecordMetric,
// EffStartSpan/EffEndSpan) is routed through a Telemetry implementation.
package telemetry

import (
	"context"

	"github.com/dshills/orchestrator-core/core"
)

// Telemetry is the pluggable observability sink the interp package drives.
// Implementations must not block the orchestrator loop on a slow backend;
// degrade to dropping or buffering rather than stalling a run.
type Telemetry interface {
	// Log emits a structured log line at the given level.
	Log(level core.LogLevel, msg string, fields map[string]any)

	// RecordMetric records value for a named metric, tagged by tags.
	// Implementations decide whether name maps to a counter, gauge, or
	// histogram; the orchestrator only ever calls RecordMetric once per
	// observation and never reads metrics back.
	RecordMetric(name string, value float64, tags map[string]string)

	// StartSpan begins a trace span named name with the given attributes,
	// returning a context carrying the span and a Span handle to end it.
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, Span)

	// Flush blocks until all buffered telemetry has been delivered, or
	// ctx is done. The orchestrator loop never calls it; the caller that
	// owns the backend does, at shutdown.
	Flush(ctx context.Context) error
}

// Span is the handle StartSpan returns. End must be called exactly once.
type Span interface {
	End(ok bool, errMsg string)
}
