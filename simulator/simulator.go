// Package simulator estimates the discounted return of a policy by Monte
// Carlo runs on a POMDP.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sw965/solvepomdp/pomdp"
)

var ErrRuns = errors.New("simulator: runs and steps must be positive")

// PolicyFactory returns a policy for the exclusive use of one worker.
type PolicyFactory func() Policy

type Option func(*Simulator)

func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		s.seed = seed
	}
}

func WithWorkers(n int) Option {
	return func(s *Simulator) {
		s.workers = n
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

type Simulator struct {
	model     pomdp.Model
	newPolicy PolicyFactory
	seed      uint64
	workers   int
	logger    *zap.Logger
}

func New(m pomdp.Model, newPolicy PolicyFactory, opts ...Option) *Simulator {
	s := &Simulator{
		model:     m,
		newPolicy: newPolicy,
		workers:   runtime.GOMAXPROCS(0),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

type Result struct {
	Runs   int
	Mean   float64
	StdDev float64
}

// Run simulates runs episodes of steps steps. Run r draws from a generator
// seeded with (seed, r), so results do not depend on the worker count.
func (s *Simulator) Run(ctx context.Context, runs, steps int) (Result, error) {
	if runs <= 0 || steps <= 0 {
		return Result{}, fmt.Errorf("%w: runs=%d steps=%d", ErrRuns, runs, steps)
	}
	returns := make([]float64, runs)
	workers := min(s.workers, runs)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			policy := s.newPolicy()
			for run := w; run < runs; run += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				rng := rand.New(rand.NewPCG(s.seed, uint64(run)))
				value, err := s.episode(policy, rng, steps)
				if err != nil {
					return fmt.Errorf("run %d: %w", run, err)
				}
				returns[run] = value
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	mean, std := stat.MeanStdDev(returns, nil)
	if runs == 1 {
		std = 0
	}
	s.logger.Info("simulated",
		zap.Int("runs", runs),
		zap.Int("steps", steps),
		zap.Int("workers", workers),
		zap.Float64("mean", mean),
		zap.Float64("std_dev", std))
	return Result{Runs: runs, Mean: mean, StdDev: std}, nil
}

func (s *Simulator) episode(policy Policy, rng *rand.Rand, steps int) (float64, error) {
	m := s.model
	nS, nO := m.NumStates(), m.NumObservations()
	b := m.InitialBelief()
	state := sample(rng, b.Entries)
	policy.Reset()

	probs := make([]float64, max(nS, nO))
	value := 0.0
	for step := 0; step < steps; step++ {
		a := policy.Action(b)
		if a < 0 || a >= m.NumActions() {
			return 0, fmt.Errorf("simulator: policy chose invalid action %d", a)
		}
		value += math.Pow(m.Discount(), float64(step)) * m.Reward(state, a)

		for sNext := 0; sNext < nS; sNext++ {
			probs[sNext] = m.Transition(state, a, sNext)
		}
		state = sample(rng, probs[:nS])
		for o := 0; o < nO; o++ {
			probs[o] = m.Observation(a, state, o)
		}
		o := sample(rng, probs[:nO])

		policy.Update(a, o)
		next, err := pomdp.UpdateBelief(m, b, a, o)
		if err != nil {
			return 0, err
		}
		b = next
	}
	return value, nil
}

// sample draws an index with probability proportional to weights.
func sample(rng *rand.Rand, weights []float64) int {
	cdf := make([]float64, len(weights))
	floats.CumSum(cdf, weights)
	x := rng.Float64() * cdf[len(cdf)-1]
	i := sort.Search(len(cdf), func(i int) bool { return cdf[i] > x })
	if i == len(cdf) {
		i = len(cdf) - 1
	}
	return i
}
