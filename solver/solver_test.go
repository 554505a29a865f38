package solver_test

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sw965/solvepomdp/alpha"
	"github.com/sw965/solvepomdp/lp"
	"github.com/sw965/solvepomdp/metrics"
	"github.com/sw965/solvepomdp/pomdp"
	"github.com/sw965/solvepomdp/pomdp/models"
	"github.com/sw965/solvepomdp/prune"
	"github.com/sw965/solvepomdp/solver"
)

type stageLog struct {
	stages      []int
	values      []float64
	final       alpha.Set
	policyGraph bool
	b0          []float64
}

func (l *stageLog) RecordStage(stage int, vectors alpha.Set) error {
	l.stages = append(l.stages, stage)
	l.values = append(l.values, alpha.Value(l.b0, vectors))
	return nil
}

func (l *stageLog) RecordFinal(vectors alpha.Set, policyGraph bool) error {
	l.final = vectors
	l.policyGraph = policyGraph
	return nil
}

func newExact(t *testing.T, cfg solver.Config, method string, opts ...solver.Option) *solver.Exact {
	t.Helper()
	lpCfg := lp.DefaultConfig()
	if method == prune.AcceleratedName {
		lpCfg.AcceleratedThreshold = 3
		lpCfg.AcceleratedTolerance = 1e-7
	}
	oracle, err := lp.New(lp.SimplexName, lpCfg)
	require.NoError(t, err)
	require.NoError(t, oracle.Init())
	m, err := prune.New(method, oracle)
	require.NoError(t, err)
	opts = append([]solver.Option{solver.WithLogger(zaptest.NewLogger(t))}, opts...)
	return solver.New(cfg, oracle, m, opts...)
}

// horizonValue evaluates the finite-horizon Bellman recursion directly on
// beliefs. horizon 1 is the immediate reward.
func horizonValue(m pomdp.Model, b *pomdp.Belief, horizon int) float64 {
	best := math.Inf(-1)
	for a := 0; a < m.NumActions(); a++ {
		q := 0.0
		for s := 0; s < m.NumStates(); s++ {
			q += b.At(s) * m.Reward(s, a)
		}
		if horizon > 1 {
			for o := 0; o < m.NumObservations(); o++ {
				p := b.ActionObservationProb(m, a, o)
				if p <= 0 {
					continue
				}
				next, err := pomdp.UpdateBelief(m, b, a, o)
				if err != nil {
					panic(err)
				}
				q += m.Discount() * p * horizonValue(m, next, horizon-1)
			}
		}
		best = math.Max(best, q)
	}
	return best
}

func TestRevealingFixedPoint(t *testing.T) {
	const discount = 0.5
	rewards := [2][2]float64{{1, 0}, {0, 1}}
	m := models.Revealing(discount, rewards)

	cfg := solver.DefaultConfig()
	cfg.ValueFunctionTolerance = 1e-9
	for _, method := range []string{prune.StandardName, prune.AcceleratedName} {
		res, err := newExact(t, cfg, method).Solve(context.Background(), m)
		require.NoError(t, err)
		assert.Equal(t, solver.StopConverged, res.StopReason)
		require.Len(t, res.Vectors, 2)

		// alpha_a(s) = R(s, a) + discount / (1 - discount) * max_a' R(s, a')
		future := discount / (1 - discount)
		for _, v := range res.Vectors {
			a := v.Action
			want := []float64{rewards[0][a] + future, rewards[1][a] + future}
			assert.InDeltaSlice(t, want, v.Entries, 1e-6, method)
		}
		assert.InDelta(t, 1.5, res.ExpectedValue, 1e-6)
		assert.Less(t, res.BellmanError, 1e-9)
	}
}

func TestTigerMatchesFiniteHorizonRecursion(t *testing.T) {
	m := models.Tiger(0.9)
	r := rand.New(rand.NewPCG(3, 4))
	for _, method := range []string{prune.StandardName, prune.AcceleratedName, prune.PolicyGraphName} {
		cfg := solver.DefaultConfig()
		cfg.FixedStages = 4
		res, err := newExact(t, cfg, method).Solve(context.Background(), m)
		require.NoError(t, err)
		assert.Equal(t, solver.StopFixedStages, res.StopReason)
		assert.Equal(t, 4, res.Stages)
		assert.True(t, math.IsInf(res.BellmanError, 1))

		for i := 0; i < 20; i++ {
			p := r.Float64()
			b := pomdp.NewBelief([]float64{p, 1 - p})
			assert.InDelta(t, horizonValue(m, b, 4), alpha.Value(b.Entries, res.Vectors), 1e-6, method)
		}
	}
}

func TestMonotoneValueWithNonNegativeRewards(t *testing.T) {
	m := models.Revealing(0.8, [2][2]float64{{2, 0.5}, {0, 1}})
	log := &stageLog{b0: m.InitialBelief().Entries}
	cfg := solver.DefaultConfig()
	cfg.FixedStages = 8
	_, err := newExact(t, cfg, prune.StandardName, solver.WithRecorder(log)).Solve(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, log.stages)
	for i := 1; i < len(log.values); i++ {
		assert.GreaterOrEqual(t, log.values[i], log.values[i-1]-1e-9)
	}
}

func TestTigerPolicyGraphAfterFixedStages(t *testing.T) {
	m := models.Tiger(0.75)
	log := &stageLog{b0: m.InitialBelief().Entries}
	cfg := solver.DefaultConfig()
	cfg.FixedStages = 5
	cfg.DumpPolicyGraph = true
	res, err := newExact(t, cfg, prune.StandardName, solver.WithRecorder(log)).Solve(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, solver.StopFixedStages, res.StopReason)
	assert.Equal(t, 6, res.Stages)
	assert.True(t, res.PolicyGraph)
	assert.True(t, log.policyGraph)
	assert.Equal(t, res.Vectors, log.final)
	assert.Equal(t, res.Stages, log.stages[len(log.stages)-1])
	// the finalization stage measures the change it made
	assert.False(t, math.IsInf(res.BellmanError, 1))
	assert.GreaterOrEqual(t, res.BellmanError, 0.0)

	for _, v := range res.Vectors {
		require.Len(t, v.ObsSource, m.NumObservations())
		for _, next := range v.ObsSource {
			assert.GreaterOrEqual(t, next, 0)
			assert.Less(t, next, len(res.Vectors))
		}
	}
	assert.InDelta(t, alpha.Value(m.InitialBelief().Entries, res.Vectors), res.ExpectedValue, 1e-12)
}

func TestPolicyGraphReplaysGreedyActions(t *testing.T) {
	m := models.Revealing(0.9, [2][2]float64{{1, 0}, {0, 1}})
	cfg := solver.DefaultConfig()
	cfg.ValueFunctionTolerance = 1e-7
	cfg.DumpPolicyGraph = true
	res, err := newExact(t, cfg, prune.StandardName).Solve(context.Background(), m)
	require.NoError(t, err)
	require.True(t, res.PolicyGraph)

	// the first observation reveals the state, later ones must repeat it
	for _, observations := range [][]int{{0, 0, 0}, {1, 1, 1}} {
		b := pomdp.NewBelief([]float64{0.7, 0.3})
		node := alpha.BestIndex(b.Entries, res.Vectors)
		for _, o := range observations {
			greedy := res.Vectors[alpha.BestIndex(b.Entries, res.Vectors)]
			a := res.Vectors[node].Action
			require.Equal(t, greedy.Action, a)

			next, err := pomdp.UpdateBelief(m, b, a, o)
			require.NoError(t, err)
			b = next
			node = res.Vectors[node].ObsSource[o]
		}
	}
}

func TestStopsOnTimeLimit(t *testing.T) {
	cfg := solver.DefaultConfig()
	cfg.ValueFunctionTolerance = 0
	cfg.TimeLimit = time.Nanosecond
	res, err := newExact(t, cfg, prune.StandardName).Solve(context.Background(), models.Tiger(0.95))
	require.NoError(t, err)
	assert.Equal(t, solver.StopTimeLimit, res.StopReason)
	assert.Equal(t, 2, res.Stages)
}

func TestStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := solver.DefaultConfig()
	cfg.ValueFunctionTolerance = 0
	res, err := newExact(t, cfg, prune.StandardName).Solve(ctx, models.Tiger(0.95))
	require.NoError(t, err)
	assert.Equal(t, solver.StopCancelled, res.StopReason)
	assert.Equal(t, 2, res.Stages)
	assert.NotEmpty(t, res.Vectors)
}

func TestFixedStagesBelowTwoRunsOneStage(t *testing.T) {
	cfg := solver.DefaultConfig()
	cfg.FixedStages = 1
	res, err := newExact(t, cfg, prune.StandardName).Solve(context.Background(), models.Tiger(0.95))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stages)
}

func TestInvalidConfig(t *testing.T) {
	cfg := solver.DefaultConfig()
	cfg.FixedStages = -1
	_, err := newExact(t, cfg, prune.StandardName).Solve(context.Background(), models.Tiger(0.95))
	assert.ErrorIs(t, err, solver.ErrConfig)
}

func TestStageMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(reg)
	cfg := solver.DefaultConfig()
	cfg.FixedStages = 3
	res, err := newExact(t, cfg, prune.StandardName, solver.WithMetrics(c)).Solve(context.Background(), models.Tiger(0.95))
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Stages))
	assert.Equal(t, float64(len(res.Vectors)), testutil.ToFloat64(c.StageVectors))
}
