// Package metrics provides Prometheus instrumentation for collections and views.
//
// A nil *Collector is valid and records nothing, so the engine can call it
// unconditionally.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "liveview"

// Collector holds the counters shared by a collection and its views.
type Collector struct {
	Mutations     *prometheus.CounterVec
	Evictions     prometheus.Counter
	Rebuilds      *prometheus.CounterVec
	Notifications *prometheus.CounterVec
}

// New creates a Collector registered with reg. A nil reg creates
// unregistered counters (useful in tests and one-shot CLI runs).
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collection",
			Name:      "mutations_total",
			Help:      "Collection mutations by operation.",
		}, []string{"op"}),
		Evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collection",
			Name:      "evictions_total",
			Help:      "Records evicted because the collection reached its limit.",
		}),
		Rebuilds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "rebuilds_total",
			Help:      "Full view rebuilds by view and reason.",
		}, []string{"view", "reason"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "notifications_total",
			Help:      "Notifications emitted to view listeners by view and kind.",
		}, []string{"view", "kind"}),
	}
}

// Mutation counts one collection mutation.
func (c *Collector) Mutation(op string) {
	if c == nil {
		return
	}
	c.Mutations.WithLabelValues(op).Inc()
}

// Evicted counts n evicted records.
func (c *Collector) Evicted(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Evictions.Add(float64(n))
}

// Rebuilt counts one full rebuild of view.
func (c *Collector) Rebuilt(view, reason string) {
	if c == nil {
		return
	}
	c.Rebuilds.WithLabelValues(view, reason).Inc()
}

// Notified counts one notification of kind emitted by view.
func (c *Collector) Notified(view, kind string) {
	if c == nil {
		return
	}
	c.Notifications.WithLabelValues(view, kind).Inc()
}

// Summarize flattens every non-zero counter gathered from g into
// "name{label=value,...}" -> value, for CLI reports.
func Summarize(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			v := m.GetCounter().GetValue()
			if v == 0 {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			out[name] = v
		}
	}
	return out, nil
}
