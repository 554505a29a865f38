// Package metrics exposes solver and LP oracle counters as Prometheus
// collectors. A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "solvepomdp"

type Collector struct {
	LPCalls       *prometheus.CounterVec
	Competitors   *prometheus.CounterVec
	Stages        prometheus.Counter
	StageVectors  prometheus.Gauge
	BellmanError  prometheus.Gauge
	StageDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg when reg is non-nil.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		LPCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lp",
			Name:      "calls_total",
			Help:      "Witness oracle queries by operation and outcome.",
		}, []string{"op", "outcome"}),
		Competitors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prune",
			Name:      "competitor_sets_total",
			Help:      "Competitor sets chosen for witness queries after a cross-sum.",
		}, []string{"set"}),
		Stages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "stages_total",
			Help:      "Completed dynamic programming stages.",
		}),
		StageVectors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "vectors",
			Help:      "Alpha-vectors in the value function of the last stage.",
		}),
		BellmanError: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "bellman_error",
			Help:      "Bellman error after the last stage.",
		}),
		StageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of a dynamic programming stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(c.LPCalls, c.Competitors, c.Stages, c.StageVectors, c.BellmanError, c.StageDuration)
	}
	return c
}

func (c *Collector) ObserveLP(op, outcome string) {
	if c == nil {
		return
	}
	c.LPCalls.WithLabelValues(op, outcome).Inc()
}

func (c *Collector) ObserveCompetitors(set string) {
	if c == nil {
		return
	}
	c.Competitors.WithLabelValues(set).Inc()
}

func (c *Collector) ObserveStage(vectors int, bellmanError float64, d time.Duration) {
	if c == nil {
		return
	}
	c.Stages.Inc()
	c.StageVectors.Set(float64(vectors))
	c.BellmanError.Set(bellmanError)
	c.StageDuration.Observe(d.Seconds())
}
