// Package metrics counts weave outcomes in a Prometheus registry that can be
// written out in the text exposition format for node_exporter's textfile
// collector.
package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/classweave/internal/engine"
)

// Class outcomes.
const (
	OutcomeTransformed = "transformed"
	OutcomeUnchanged   = "unchanged"
	OutcomeFailed      = "failed"
)

// Metrics is the collection of weave metrics for one process.
type Metrics struct {
	registry *prom.Registry

	Classes    *prom.CounterVec
	Members    *prom.CounterVec
	Injections *prom.CounterVec
	Warnings   prom.Counter
	Duration   prom.Histogram
}

// New returns Metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prom.NewRegistry(),
		Classes: prom.NewCounterVec(
			prom.CounterOpts{
				Namespace: "classweave",
				Name:      "classes_total",
				Help:      "Classes processed, by outcome.",
			},
			[]string{"outcome"}),
		Members: prom.NewCounterVec(
			prom.CounterOpts{
				Namespace: "classweave",
				Name:      "members_total",
				Help:      "Members reaching Done, by kind and whether they were injected or skipped.",
			},
			[]string{"kind", "result"}),
		Injections: prom.NewCounterVec(
			prom.CounterOpts{
				Namespace: "classweave",
				Name:      "injections_total",
				Help:      "Instruction blocks inserted, by pass.",
			},
			[]string{"pass"}),
		Warnings: prom.NewCounter(
			prom.CounterOpts{
				Namespace: "classweave",
				Name:      "warnings_total",
				Help:      "Recoverable conditions reported while transforming.",
			}),
		Duration: prom.NewHistogram(
			prom.HistogramOpts{
				Namespace: "classweave",
				Name:      "transform_duration_seconds",
				Help:      "Time to parse, transform and serialize one class.",
				Buckets:   prom.ExponentialBuckets(0.0001, 4, 8),
			}),
	}
	m.registry.MustRegister(m.Classes, m.Members, m.Injections, m.Warnings, m.Duration)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prom.Registry { return m.registry }

// Observe records one class. A nil result counts as a failure.
func (m *Metrics) Observe(res *engine.Result, elapsed time.Duration) {
	m.Duration.Observe(elapsed.Seconds())
	if res == nil {
		m.Classes.WithLabelValues(OutcomeFailed).Inc()
		return
	}
	if res.Transformed() {
		m.Classes.WithLabelValues(OutcomeTransformed).Inc()
	} else {
		m.Classes.WithLabelValues(OutcomeUnchanged).Inc()
	}
	for _, r := range res.Members {
		result := "skipped"
		if r.Injections > 0 {
			result = "injected"
			m.Injections.WithLabelValues(string(r.Pass)).Add(float64(r.Injections))
		}
		m.Members.WithLabelValues(string(r.Kind), result).Inc()
	}
	m.Warnings.Add(float64(len(res.Warnings)))
}

// WriteFile writes the registry to path atomically.
func (m *Metrics) WriteFile(path string) error {
	return prom.WriteToTextfile(path, m.registry)
}
