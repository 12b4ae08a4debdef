package telemetry

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/orchestrator-core/core"
)

// Prometheus records metrics under the "orchestrator" namespace. Unlike
// the teacher's fixed metric set, Decide emits a moderately open-ended
// vocabulary of metric names (tokens_used, tests_passed, confidence, ...),
// so gauges are registered lazily on first use rather than all up front.
//
// All Decide-originated metrics are point observations (a single counter
// increment or a gauge set), so everything here is backed by a GaugeVec
// keyed on the tag set's keys; callers that always pass the same tag keys
// for a given metric name get a stable label set, which is Prometheus's
// requirement.
type Prometheus struct {
	registry prometheus.Registerer

	mu     sync.Mutex
	gauges map[string]*prometheus.GaugeVec
}

// NewPrometheus creates a Prometheus telemetry backend registered against
// registry. Pass nil to use prometheus.DefaultRegisterer.
func NewPrometheus(registry prometheus.Registerer) *Prometheus {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Prometheus{
		registry: registry,
		gauges:   make(map[string]*prometheus.GaugeVec),
	}
}

func (p *Prometheus) Log(core.LogLevel, string, map[string]any) {
	// Prometheus has no log sink; pair this with telemetry.Multi and a
	// Log backend if both are wanted.
}

func (p *Prometheus) RecordMetric(name string, value float64, tags map[string]string) {
	gauge := p.gaugeFor(name, tags)
	gauge.With(toPromLabels(tags)).Set(value)
}

func (p *Prometheus) gaugeFor(name string, tags map[string]string) *prometheus.GaugeVec {
	p.mu.Lock()
	defer p.mu.Unlock()

	if g, ok := p.gauges[name]; ok {
		return g
	}

	labelNames := make([]string, 0, len(tags))
	for k := range tags {
		labelNames = append(labelNames, k)
	}

	g := promauto.With(p.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "orchestrator",
		Name:      sanitizeMetricName(name),
		Help:      "orchestrator metric " + name,
	}, labelNames)
	p.gauges[name] = g
	return g
}

func (p *Prometheus) StartSpan(ctx context.Context, _ string, _ map[string]string) (context.Context, Span) {
	return ctx, nullSpan{} // tracing is OTel's job, see otel.go
}

func (p *Prometheus) Flush(context.Context) error { return nil }

func toPromLabels(tags map[string]string) prometheus.Labels {
	labels := make(prometheus.Labels, len(tags))
	for k, v := range tags {
		labels[k] = v
	}
	return labels
}

// sanitizeMetricName replaces characters Prometheus metric names disallow.
// Decide's metric names are already snake_case identifiers, so this is a
// defensive no-op in practice.
func sanitizeMetricName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
