package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/sw965/solvepomdp/metrics"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(reg)

	c.ObserveLP("find_region_point", "witness")
	c.ObserveLP("find_region_point", "witness")
	c.ObserveLP("find_region_point", "none")
	c.ObserveCompetitors("d1")
	c.ObserveStage(7, 0.25, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.LPCalls.WithLabelValues("find_region_point", "witness")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.LPCalls.WithLabelValues("find_region_point", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Competitors.WithLabelValues("d1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Stages))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.StageVectors))
	assert.Equal(t, 0.25, testutil.ToFloat64(c.BellmanError))

	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestNilCollector(t *testing.T) {
	var c *metrics.Collector
	assert.NotPanics(t, func() {
		c.ObserveLP("x", "y")
		c.ObserveCompetitors("d")
		c.ObserveStage(1, 0, time.Second)
	})
}
