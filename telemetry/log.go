package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dshills/orchestrator-core/core"
)

// Log writes structured output to an io.Writer, either as human-readable
// text (the default) or JSON Lines. Spans are logged as a pair of lines
// (start/end) rather than held open, since nothing here aggregates
// durations across processes.
type Log struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLog creates a Log writing to w. A nil w defaults to os.Stdout.
func NewLog(w io.Writer, jsonMode bool) *Log {
	if w == nil {
		w = os.Stdout
	}
	return &Log{writer: w, jsonMode: jsonMode}
}

func (l *Log) Log(level core.LogLevel, msg string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.jsonMode {
		l.writeJSON(map[string]any{"level": string(level), "msg": msg, "fields": fields})
		return
	}

	fmt.Fprintf(l.writer, "[%s] %s", level, msg)
	if len(fields) > 0 {
		if b, err := json.Marshal(fields); err == nil {
			fmt.Fprintf(l.writer, " fields=%s", b)
		}
	}
	fmt.Fprintln(l.writer)
}

func (l *Log) RecordMetric(name string, value float64, tags map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.jsonMode {
		l.writeJSON(map[string]any{"metric": name, "value": value, "tags": tags})
		return
	}

	fmt.Fprintf(l.writer, "[metric] %s=%v", name, value)
	if len(tags) > 0 {
		if b, err := json.Marshal(tags); err == nil {
			fmt.Fprintf(l.writer, " tags=%s", b)
		}
	}
	fmt.Fprintln(l.writer)
}

func (l *Log) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, Span) {
	l.mu.Lock()
	if l.jsonMode {
		l.writeJSON(map[string]any{"span_start": name, "attrs": attrs})
	} else {
		fmt.Fprintf(l.writer, "[span_start] %s attrs=%v\n", name, attrs)
	}
	l.mu.Unlock()

	return ctx, &logSpan{log: l, name: name}
}

func (l *Log) Flush(context.Context) error { return nil }

// writeJSON assumes the caller already holds l.mu.
func (l *Log) writeJSON(v map[string]any) {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(l.writer, `{"error":"marshal failed: %v"}`+"\n", err)
		return
	}
	fmt.Fprintf(l.writer, "%s\n", data)
}

type logSpan struct {
	log  *Log
	name string
}

func (s *logSpan) End(ok bool, errMsg string) {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()

	if s.log.jsonMode {
		s.log.writeJSON(map[string]any{"span_end": s.name, "ok": ok, "error": errMsg})
		return
	}
	fmt.Fprintf(s.log.writer, "[span_end] %s ok=%v", s.name, ok)
	if errMsg != "" {
		fmt.Fprintf(s.log.writer, " error=%q", errMsg)
	}
	fmt.Fprintln(s.log.writer)
}
