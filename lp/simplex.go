package lp

import (
	"math"
	"slices"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	convexlp "gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/sw965/solvepomdp/alpha"
	"github.com/sw965/solvepomdp/mathx"
	"github.com/sw965/solvepomdp/metrics"
)

const SimplexName = "gonum"

const (
	opFindRegionPoint            = "find_region_point"
	opFindRegionPointAccelerated = "find_region_point_accelerated"
	opMaxValueDiff               = "max_value_diff"
)

type Option func(*Simplex)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Simplex) {
		s.logger = logger
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(s *Simplex) {
		s.metrics = c
	}
}

// Simplex answers witness queries with gonum's simplex method. The program
// is put in standard form over the columns
//
//	[ b_0 .. b_{n-1} | d+ | d- | t_0 .. t_{m-1} ]
//
// where d = d+ - d- is the free margin and t_i is the surplus of the i-th
// competitor row.
type Simplex struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Collector
}

func NewSimplex(cfg Config, opts ...Option) *Simplex {
	s := &Simplex{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simplex) Name() string   { return SimplexName }
func (s *Simplex) Config() Config { return s.cfg }
func (s *Simplex) Init() error    { return s.cfg.Validate() }
func (s *Simplex) Close() error   { return nil }

func (s *Simplex) SetEpsilon(epsilon float64)          { s.cfg.Epsilon = epsilon }
func (s *Simplex) SetCoefficientThreshold(t float64)   { s.cfg.CoefficientThreshold = t }
func (s *Simplex) SetAcceleratedThreshold(t int)       { s.cfg.AcceleratedThreshold = t }
func (s *Simplex) SetAcceleratedTolerance(tol float64) { s.cfg.AcceleratedTolerance = tol }

type solution struct {
	belief    []float64
	d         float64
	objective float64
}

// solve maximises d against the competitor rows.
func (s *Simplex) solve(w *alpha.Vector, rows alpha.Set) (solution, error) {
	n := w.Len()
	m := len(rows)
	nVar := n + 2 + m
	dPlus, dMinus := n, n+1

	A := mat.NewDense(1+m, nVar, nil)
	b := make([]float64, 1+m)
	for st := 0; st < n; st++ {
		A.Set(0, st, s.cfg.Coefficient(1))
	}
	b[0] = 1
	for i, u := range rows {
		row := 1 + i
		for st := 0; st < n; st++ {
			A.Set(row, st, s.cfg.Coefficient(w.Entries[st]-u.Entries[st]))
		}
		A.Set(row, dPlus, s.cfg.Coefficient(-1))
		A.Set(row, dMinus, s.cfg.Coefficient(1))
		A.Set(row, n+2+i, -1)
	}

	c := make([]float64, nVar)
	c[dPlus] = -1
	c[dMinus] = 1

	optF, x, err := convexlp.Simplex(c, A, b, s.cfg.SimplexTolerance, nil)
	if err != nil {
		return solution{}, err
	}
	return solution{
		belief:    slices.Clone(x[:n]),
		d:         x[dPlus] - x[dMinus],
		objective: -optF,
	}, nil
}

func (s *Simplex) fail(op string, err error, nRows int) {
	s.logger.Debug("lp backend failure treated as no witness",
		zap.String("op", op), zap.Int("rows", nRows), zap.Error(err))
	s.metrics.ObserveLP(op, "failure")
}

func (s *Simplex) outcome(op string, ok bool) {
	if ok {
		s.metrics.ObserveLP(op, "witness")
	} else {
		s.metrics.ObserveLP(op, "none")
	}
}

func (s *Simplex) FindRegionPoint(w *alpha.Vector, U alpha.Set) ([]float64, bool) {
	return s.findRegionPoint(opFindRegionPoint, w, U)
}

func (s *Simplex) findRegionPoint(op string, w *alpha.Vector, U alpha.Set) ([]float64, bool) {
	if len(U) == 0 {
		s.outcome(op, true)
		return CornerBelief(w.Len()), true
	}
	sol, err := s.solve(w, U)
	if err != nil {
		s.fail(op, err, len(U))
		return nil, false
	}
	ok := sol.d > s.cfg.Epsilon && sol.objective > s.cfg.Epsilon
	s.outcome(op, ok)
	if !ok {
		return nil, false
	}
	return sol.belief, true
}

func (s *Simplex) FindRegionPointAccelerated(w *alpha.Vector, U alpha.Set) ([]float64, bool) {
	const op = opFindRegionPointAccelerated
	if len(U) == 0 || s.cfg.AcceleratedThreshold == 0 || len(U) <= s.cfg.AcceleratedThreshold {
		return s.findRegionPoint(op, w, U)
	}

	n := w.Len()
	k := selectConstraint(U, w, CornerBelief(n))
	added := make([]bool, len(U))
	added[k] = true
	rows := alpha.Set{U[k]}

	currentMin := math.Inf(1)
	lastBelief := make([]float64, n)
	var belief []float64

	for {
		sol, err := s.solve(w, rows)
		if err != nil {
			s.fail(op, err, len(rows))
			return nil, false
		}
		belief = sol.belief
		beliefDiff := floats.Distance(lastBelief, belief, 1)
		lastBelief = belief

		objectiveChange := mathx.AbsDiff(currentMin, sol.objective)
		currentMin = math.Min(currentMin, sol.objective)

		tol := s.cfg.AcceleratedTolerance
		if (beliefDiff < tol && objectiveChange < tol) || len(rows) == len(U) {
			break
		}
		if currentMin <= s.cfg.Epsilon {
			break
		}

		k = selectConstraint(U, w, belief)
		if added[k] {
			break
		}
		added[k] = true
		rows = append(rows, U[k])
	}

	ok := currentMin > s.cfg.Epsilon
	s.outcome(op, ok)
	if !ok {
		return nil, false
	}
	return belief, true
}

func (s *Simplex) MaxValueDiff(w *alpha.Vector, U alpha.Set) float64 {
	if len(U) == 0 {
		panic("lp: MaxValueDiff requires a non-empty competitor set")
	}
	sol, err := s.solve(w, U)
	if err != nil {
		s.fail(opMaxValueDiff, err, len(U))
		return 0
	}
	s.metrics.ObserveLP(opMaxValueDiff, "solved")
	return mathx.AboveOrZero(sol.d, s.cfg.Epsilon)
}
