package simulator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/sw965/solvepomdp/alpha"
	"github.com/sw965/solvepomdp/lp"
	"github.com/sw965/solvepomdp/pomdp"
	"github.com/sw965/solvepomdp/pomdp/models"
	"github.com/sw965/solvepomdp/prune"
	"github.com/sw965/solvepomdp/simulator"
	"github.com/sw965/solvepomdp/solver"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// solve runs to tolerance, or for exactly stages stages when stages > 0.
func solve(t *testing.T, m pomdp.Model, tolerance float64, stages int) *solver.Result {
	t.Helper()
	oracle, err := lp.New(lp.SimplexName, lp.DefaultConfig())
	require.NoError(t, err)
	cfg := solver.DefaultConfig()
	cfg.ValueFunctionTolerance = tolerance
	cfg.FixedStages = stages
	cfg.DumpPolicyGraph = true
	res, err := solver.New(cfg, oracle, prune.NewStandard(oracle)).Solve(context.Background(), m)
	require.NoError(t, err)
	return res
}

type constant int

func (c constant) Action(*pomdp.Belief) int { return int(c) }
func (constant) Update(int, int)            {}
func (constant) Reset()                     {}

func TestVectorPolicyOnRevealing(t *testing.T) {
	m := models.Revealing(0.5, [2][2]float64{{1, 0}, {0, 1}})
	res := solve(t, m, 1e-9, 0)

	sim := simulator.New(m, func() simulator.Policy { return simulator.NewVectorPolicy(res.Vectors) },
		simulator.WithSeed(7), simulator.WithWorkers(4), simulator.WithLogger(zaptest.NewLogger(t)))
	got, err := sim.Run(context.Background(), 4000, 40)
	require.NoError(t, err)
	assert.Equal(t, 4000, got.Runs)
	// the first reward is a coin flip, every later step earns 1
	assert.InDelta(t, res.ExpectedValue, got.Mean, 0.05)
	assert.InDelta(t, 0.5, got.StdDev, 0.02)
}

func TestResultsIndependentOfWorkers(t *testing.T) {
	m := models.Tiger(0.95)
	policy := func() simulator.Policy { return constant(models.Listen) }
	one, err := simulator.New(m, policy, simulator.WithSeed(3), simulator.WithWorkers(1)).Run(context.Background(), 100, 10)
	require.NoError(t, err)
	many, err := simulator.New(m, policy, simulator.WithSeed(3), simulator.WithWorkers(7)).Run(context.Background(), 100, 10)
	require.NoError(t, err)
	assert.Equal(t, one, many)

	// listening always costs 1
	want := 0.0
	for step, discount := 0, 1.0; step < 10; step, discount = step+1, discount*0.95 {
		want -= discount
	}
	assert.InDelta(t, want, one.Mean, 1e-12)
	assert.InDelta(t, 0, one.StdDev, 1e-12)
}

func TestFSCMatchesVectorPolicyOnRevealing(t *testing.T) {
	m := models.Revealing(0.9, [2][2]float64{{1, 0}, {0, 1}})
	res := solve(t, m, 1e-7, 0)
	require.True(t, res.PolicyGraph)

	fsc, err := simulator.FSCFromVectors(res.Vectors, m.InitialBelief().Entries)
	require.NoError(t, err)
	assert.Equal(t, alpha.BestIndex(m.InitialBelief().Entries, res.Vectors), fsc.Node())

	vector, err := simulator.New(m, func() simulator.Policy { return simulator.NewVectorPolicy(res.Vectors) },
		simulator.WithSeed(11)).Run(context.Background(), 500, 30)
	require.NoError(t, err)
	graph, err := simulator.New(m, func() simulator.Policy { return fsc.Clone() },
		simulator.WithSeed(11)).Run(context.Background(), 500, 30)
	require.NoError(t, err)
	assert.InDelta(t, vector.Mean, graph.Mean, 1e-9)
}

func TestTigerPoliciesAchieveExpectedValue(t *testing.T) {
	m := models.Tiger(0.5)
	res := solve(t, m, 0, 8)
	fsc, err := simulator.FSCFromVectors(res.Vectors, m.InitialBelief().Entries)
	require.NoError(t, err)

	for name, factory := range map[string]simulator.PolicyFactory{
		"vector": func() simulator.Policy { return simulator.NewVectorPolicy(res.Vectors) },
		"fsc":    func() simulator.Policy { return fsc.Clone() },
	} {
		got, err := simulator.New(m, factory, simulator.WithSeed(5)).Run(context.Background(), 6000, 50)
		require.NoError(t, err, name)
		assert.InDelta(t, res.ExpectedValue, got.Mean, 3, name)
	}
}

func TestFSCPolicyTransitions(t *testing.T) {
	p, err := simulator.NewFSCPolicy(1, []int{0, 2}, [][]int{{0, 1}, {-1, 0}})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Action(nil))
	p.Update(2, 0)
	assert.Equal(t, 0, p.Node())
	p.Update(0, 1)
	assert.Equal(t, 1, p.Node())
	p.Update(2, 1)
	p.Reset()
	assert.Equal(t, 1, p.Node())

	_, err = simulator.NewFSCPolicy(2, []int{0}, [][]int{{0}})
	assert.ErrorIs(t, err, simulator.ErrPolicyGraph)
	_, err = simulator.NewFSCPolicy(0, []int{0}, [][]int{{4}})
	assert.ErrorIs(t, err, simulator.ErrPolicyGraph)
	_, err = simulator.FSCFromVectors(alpha.Set{alpha.New([]float64{1})}, []float64{1})
	assert.ErrorIs(t, err, simulator.ErrPolicyGraph)
}

func TestRunErrors(t *testing.T) {
	m := models.Tiger(0.95)
	sim := simulator.New(m, func() simulator.Policy { return constant(9) })
	_, err := sim.Run(context.Background(), 10, 5)
	assert.Error(t, err)

	_, err = sim.Run(context.Background(), 0, 5)
	assert.ErrorIs(t, err, simulator.ErrRuns)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = simulator.New(m, func() simulator.Policy { return constant(0) }).Run(ctx, 10, 5)
	assert.ErrorIs(t, err, context.Canceled)
}
