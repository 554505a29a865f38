// Package lp defines the witness-point oracle used by incremental pruning
// and its linear programming backends.
//
// Every query solves, or relaxes, the program
//
//	maximize d
//	s.t.     sum_s b[s] = 1, b >= 0
//	         sum_s (w[s] - u[s]) b[s] - d >= 0   for every u in U
//
// whose optimum is the largest margin by which w beats the competitor set U
// at a single belief.
package lp

import (
	"fmt"

	"github.com/sw965/solvepomdp/alpha"
	"github.com/sw965/solvepomdp/mathx"
)

// Model is the witness-point oracle. Implementations hold backend state and
// must not be shared between goroutines.
type Model interface {
	Name() string
	Init() error
	Close() error
	Config() Config

	// FindRegionPoint returns a belief at which w beats every vector of U by
	// more than Epsilon, or false when no such belief exists or the backend
	// fails.
	FindRegionPoint(w *alpha.Vector, U alpha.Set) ([]float64, bool)

	// FindRegionPointAccelerated reaches the same decision by constraint
	// generation once |U| exceeds AcceleratedThreshold.
	FindRegionPointAccelerated(w *alpha.Vector, U alpha.Set) ([]float64, bool)

	// MaxValueDiff returns the optimal margin d, or 0 when d <= Epsilon.
	// U must not be empty.
	MaxValueDiff(w *alpha.Vector, U alpha.Set) float64
}

type Config struct {
	// Epsilon is the minimum margin for a belief to count as a witness.
	Epsilon float64 `yaml:"epsilon"`
	// CoefficientThreshold snaps LP coefficients with smaller magnitude to zero.
	CoefficientThreshold float64 `yaml:"coefficient_threshold"`
	// AcceleratedThreshold is the competitor set size above which the
	// accelerated query generates constraints; 0 disables acceleration.
	AcceleratedThreshold int `yaml:"accelerated_threshold"`
	// AcceleratedTolerance stops constraint generation once the belief and
	// objective change by less than this between iterations.
	AcceleratedTolerance float64 `yaml:"accelerated_tolerance"`
	// SimplexTolerance is handed to the simplex method as its optimality tolerance.
	SimplexTolerance float64 `yaml:"simplex_tolerance"`
}

func DefaultConfig() Config {
	return Config{
		Epsilon:              1e-8,
		CoefficientThreshold: 1e-9,
		AcceleratedThreshold: 200,
		AcceleratedTolerance: 1e-4,
		SimplexTolerance:     1e-10,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Epsilon < 0:
		return fmt.Errorf("%w: epsilon %v < 0", ErrConfig, c.Epsilon)
	case c.CoefficientThreshold < 0 || c.CoefficientThreshold >= 1:
		return fmt.Errorf("%w: coefficient threshold %v outside [0, 1)", ErrConfig, c.CoefficientThreshold)
	case c.AcceleratedThreshold < 0:
		return fmt.Errorf("%w: accelerated threshold %d < 0", ErrConfig, c.AcceleratedThreshold)
	case c.AcceleratedTolerance < 0:
		return fmt.Errorf("%w: accelerated tolerance %v < 0", ErrConfig, c.AcceleratedTolerance)
	case c.SimplexTolerance < 0:
		return fmt.Errorf("%w: simplex tolerance %v < 0", ErrConfig, c.SimplexTolerance)
	}
	return nil
}

// Coefficient is the single entry point for numbers placed into an LP.
func (c Config) Coefficient(x float64) float64 {
	return mathx.SnapToZero(x, c.CoefficientThreshold)
}

// CornerBelief is the witness returned for an empty competitor set.
func CornerBelief(nStates int) []float64 {
	b := make([]float64, nStates)
	b[0] = 1
	return b
}

// New returns the backend registered under name.
func New(name string, cfg Config, opts ...Option) (Model, error) {
	switch name {
	case SimplexName, "simplex":
		return NewSimplex(cfg, opts...), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSolver, name)
}

// selectConstraint returns the index of the u minimising sum_s (w[s]-u[s]) b[s].
func selectConstraint(U alpha.Set, w *alpha.Vector, b []float64) int {
	minIndex := -1
	minValue := 0.0
	for j, u := range U {
		value := 0.0
		for s, p := range b {
			value += (w.Entries[s] - u.Entries[s]) * p
		}
		if minIndex == -1 || value < minValue {
			minIndex = j
			minValue = value
		}
	}
	return minIndex
}
