package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dshills/orchestrator-core/core"
)

func TestLogTextMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf, false)

	l.Log(core.LogInfo, "turn started", map[string]any{"phase": "design"})

	out := buf.String()
	if !strings.Contains(out, "[info] turn started") {
		t.Errorf("output = %q, want it to contain the level and message", out)
	}
	if !strings.Contains(out, `"phase":"design"`) {
		t.Errorf("output = %q, want fields rendered as json", out)
	}
}

func TestLogJSONMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf, true)

	l.RecordMetric("tokens_used", 42, map[string]string{"phase": "implementation"})

	out := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(out, "{") || !strings.HasSuffix(out, "}") {
		t.Errorf("output = %q, want a single JSON object", out)
	}
	if !strings.Contains(out, `"metric":"tokens_used"`) {
		t.Errorf("output = %q, want the metric name present", out)
	}
}

func TestLogSpanEmitsStartAndEnd(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf, false)

	_, span := l.StartSpan(context.Background(), "turn", map[string]string{"phase": "testing"})
	span.End(false, "boom")

	out := buf.String()
	if !strings.Contains(out, "[span_start] turn") {
		t.Errorf("output = %q, want span_start line", out)
	}
	if !strings.Contains(out, "[span_end] turn ok=false") || !strings.Contains(out, `error="boom"`) {
		t.Errorf("output = %q, want span_end line with error", out)
	}
}
