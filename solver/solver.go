// Package solver computes optimal POMDP value functions by exact dynamic
// programming. Every stage back-projects the current value function, builds
// the per-action sets through a prune.Method and merges them.
package solver

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/sw965/solvepomdp/alpha"
	"github.com/sw965/solvepomdp/lp"
	"github.com/sw965/solvepomdp/metrics"
	"github.com/sw965/solvepomdp/pomdp"
	"github.com/sw965/solvepomdp/prune"
)

type StopReason string

const (
	StopConverged   StopReason = "converged"
	StopFixedStages StopReason = "fixed_stages"
	StopTimeLimit   StopReason = "time_limit"
	StopCancelled   StopReason = "cancelled"
)

type Config struct {
	// ValueFunctionTolerance is the Bellman error below which the solver stops.
	ValueFunctionTolerance float64 `yaml:"value_function_tolerance"`
	// FixedStages runs exactly this many stages when positive. Stage 1 is the
	// immediate reward value function. The Bellman error is not computed.
	FixedStages int `yaml:"fixed_stages"`
	// TimeLimit stops the solver after the first stage that ends past it.
	// Zero means no limit.
	TimeLimit time.Duration `yaml:"time_limit"`
	// DumpPolicyGraph runs one extra stage that records policy graph successors.
	DumpPolicyGraph bool `yaml:"dump_policy_graph"`
}

func DefaultConfig() Config {
	return Config{
		ValueFunctionTolerance: 1e-6,
	}
}

func (c Config) Validate() error {
	switch {
	case c.ValueFunctionTolerance < 0:
		return fmt.Errorf("%w: value function tolerance %v < 0", ErrConfig, c.ValueFunctionTolerance)
	case c.FixedStages < 0:
		return fmt.Errorf("%w: fixed stages %d < 0", ErrConfig, c.FixedStages)
	case c.TimeLimit < 0:
		return fmt.Errorf("%w: time limit %v < 0", ErrConfig, c.TimeLimit)
	}
	return nil
}

// Recorder persists value functions as they are produced.
type Recorder interface {
	RecordStage(stage int, vectors alpha.Set) error
	// RecordFinal receives the returned value function. policyGraph reports
	// whether every vector carries relinked ObsSource successors.
	RecordFinal(vectors alpha.Set, policyGraph bool) error
}

type nopRecorder struct{}

func (nopRecorder) RecordStage(int, alpha.Set) error  { return nil }
func (nopRecorder) RecordFinal(alpha.Set, bool) error { return nil }

type Option func(*Exact)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Exact) {
		e.logger = logger
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(e *Exact) {
		e.metrics = c
	}
}

func WithRecorder(r Recorder) Option {
	return func(e *Exact) {
		e.recorder = r
	}
}

type Result struct {
	Vectors       alpha.Set
	Stages        int
	BellmanError  float64
	ExpectedValue float64
	SolveTime     time.Duration
	StopReason    StopReason
	// PolicyGraph is true when Vectors[i].ObsSource[o] is the index in
	// Vectors of the node reached after observing o.
	PolicyGraph bool
}

// Exact runs generalized incremental pruning. An Exact is not safe for
// concurrent use because the oracle is not.
type Exact struct {
	cfg    Config
	lp     lp.Model
	method prune.Method

	logger   *zap.Logger
	metrics  *metrics.Collector
	recorder Recorder
}

func New(cfg Config, oracle lp.Model, method prune.Method, opts ...Option) *Exact {
	e := &Exact{
		cfg:      cfg,
		lp:       oracle,
		method:   method,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exact) Type() string { return "exact" }

// Solve runs stages until the value function converges or a budget runs out.
// The context is checked between stages only.
func (e *Exact) Solve(ctx context.Context, m pomdp.Model) (*Result, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	V0 := rewardVectors(m)
	bp := newBackProjector(m, V0)

	V := V0
	stage := 1
	bellman := math.Inf(1)

	e.logger.Info("solving",
		zap.String("solver", e.Type()),
		zap.String("algorithm", e.method.Name()),
		zap.String("lp", e.lp.Name()),
		zap.Int("states", m.NumStates()),
		zap.Int("actions", m.NumActions()),
		zap.Int("observations", m.NumObservations()))
	e.logger.Info("stage", zap.Int("stage", stage), zap.Int("vectors", len(V)))
	if err := e.recorder.RecordStage(stage, V); err != nil {
		return nil, err
	}

	var reason StopReason
	for reason == "" {
		stageStart := time.Now()
		stage++
		next := e.nextStage(bp, e.method, V)
		if e.cfg.FixedStages == 0 {
			bellman = math.Min(bellman, e.bellmanDifference(m, V, next))
		}
		V = next

		if err := e.finishStage(stage, V, bellman, start, stageStart); err != nil {
			return nil, err
		}

		switch {
		case e.cfg.FixedStages > 0 && stage >= e.cfg.FixedStages:
			reason = StopFixedStages
		case bellman < e.cfg.ValueFunctionTolerance:
			reason = StopConverged
		case e.cfg.TimeLimit > 0 && time.Since(start) > e.cfg.TimeLimit:
			reason = StopTimeLimit
		case ctx.Err() != nil:
			reason = StopCancelled
		}
	}

	policyGraph := false
	if e.cfg.DumpPolicyGraph {
		stageStart := time.Now()
		stage++
		next := e.nextStage(bp, prune.NewPolicyGraph(e.lp), V)
		bellman = math.Min(bellman, e.bellmanDifference(m, V, next))
		relinkSources(next, V)
		V = next
		policyGraph = true

		if err := e.finishStage(stage, V, bellman, start, stageStart); err != nil {
			return nil, err
		}
	}

	if err := e.recorder.RecordFinal(V, policyGraph); err != nil {
		return nil, err
	}

	res := &Result{
		Vectors:       V,
		Stages:        stage,
		BellmanError:  bellman,
		ExpectedValue: alpha.Value(m.InitialBelief().Entries, V),
		SolveTime:     time.Since(start),
		StopReason:    reason,
		PolicyGraph:   policyGraph,
	}
	e.logger.Info("solved",
		zap.Int("stages", res.Stages),
		zap.Int("vectors", len(V)),
		zap.Float64("bellman_error", res.BellmanError),
		zap.Float64("expected_value", res.ExpectedValue),
		zap.Duration("elapsed", res.SolveTime),
		zap.String("stop", string(reason)))
	return res, nil
}

func (e *Exact) finishStage(stage int, V alpha.Set, bellman float64, start, stageStart time.Time) error {
	e.metrics.ObserveStage(len(V), bellman, time.Since(stageStart))
	e.logger.Info("stage",
		zap.Int("stage", stage),
		zap.Int("vectors", len(V)),
		zap.Float64("bellman_error", bellman),
		zap.Duration("elapsed", time.Since(start)))
	return e.recorder.RecordStage(stage, V)
}

// bellmanDifference bounds how far next rises above old. With negative
// rewards the value function may also fall, so the reverse direction is
// included.
func (e *Exact) bellmanDifference(m pomdp.Model, old, next alpha.Set) float64 {
	diff := math.Inf(-1)
	for _, v := range next {
		diff = math.Max(diff, e.lp.MaxValueDiff(v, old))
	}
	if m.MinReward() < 0 {
		for _, v := range old {
			diff = math.Max(diff, e.lp.MaxValueDiff(v, next))
		}
	}
	return diff
}
