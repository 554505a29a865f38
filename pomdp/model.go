package pomdp

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const stochasticTolerance = 1e-6

// Model is the view of a POMDP consumed by the solvers. Indices out of range
// are programming errors and panic.
type Model interface {
	NumStates() int
	NumActions() int
	NumObservations() int
	Discount() float64
	MinReward() float64
	Reward(s, a int) float64
	Transition(s, a, sNext int) float64
	Observation(a, sNext, o int) float64
	InitialBelief() *Belief
}

// Tables holds the dense description of a POMDP.
//
//	Reward:         states x actions
//	Transition[a]:  states x states, row s is P(. | s, a)
//	Observation[a]: states x observations, row s' is P(. | a, s')
type Tables struct {
	Name         string
	Discount     float64
	Reward       *mat.Dense
	Transition   []*mat.Dense
	Observation  []*mat.Dense
	ActionLabels []string
	Initial      []float64
}

type POMDP struct {
	name          string
	nStates       int
	nActions      int
	nObservations int
	discount      float64
	minReward     float64

	reward      *mat.Dense
	transition  []*mat.Dense
	observation []*mat.Dense
	labels      []string
	initial     []float64
}

func New(t Tables) (*POMDP, error) {
	if t.Reward == nil || len(t.Transition) == 0 || len(t.Observation) == 0 {
		return nil, ErrDimension
	}
	nStates, nActions := t.Reward.Dims()
	if len(t.Transition) != nActions || len(t.Observation) != nActions {
		return nil, fmt.Errorf("%w: %d actions, %d transition and %d observation tables",
			ErrDimension, nActions, len(t.Transition), len(t.Observation))
	}
	_, nObservations := t.Observation[0].Dims()
	for a := 0; a < nActions; a++ {
		if r, c := t.Transition[a].Dims(); r != nStates || c != nStates {
			return nil, fmt.Errorf("%w: transition table %d is %dx%d", ErrDimension, a, r, c)
		}
		if r, c := t.Observation[a].Dims(); r != nStates || c != nObservations {
			return nil, fmt.Errorf("%w: observation table %d is %dx%d", ErrDimension, a, r, c)
		}
		if err := checkStochastic(t.Transition[a]); err != nil {
			return nil, fmt.Errorf("transition table %d: %w", a, err)
		}
		if err := checkStochastic(t.Observation[a]); err != nil {
			return nil, fmt.Errorf("observation table %d: %w", a, err)
		}
	}
	if t.Discount <= 0 || t.Discount > 1 {
		return nil, fmt.Errorf("pomdp: discount %v outside (0, 1]", t.Discount)
	}

	initial := t.Initial
	if initial == nil {
		initial = NewUniformBelief(nStates).Entries
	}
	if len(initial) != nStates {
		return nil, fmt.Errorf("%w: initial belief has %d entries", ErrDimension, len(initial))
	}
	if err := NewBelief(initial).Validate(); err != nil {
		return nil, err
	}

	labels := make([]string, nActions)
	for a := range labels {
		if a < len(t.ActionLabels) && t.ActionLabels[a] != "" {
			labels[a] = t.ActionLabels[a]
		} else {
			labels[a] = strconv.Itoa(a)
		}
	}

	return &POMDP{
		name:          t.Name,
		nStates:       nStates,
		nActions:      nActions,
		nObservations: nObservations,
		discount:      t.Discount,
		minReward:     mat.Min(t.Reward),
		reward:        t.Reward,
		transition:    t.Transition,
		observation:   t.Observation,
		labels:        labels,
		initial:       initial,
	}, nil
}

func checkStochastic(m *mat.Dense) error {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		if floats.Min(row) < 0 || math.Abs(floats.Sum(row)-1) > stochasticTolerance {
			return fmt.Errorf("pomdp: row %d is not a probability distribution", i)
		}
	}
	return nil
}

func (p *POMDP) Name() string         { return p.name }
func (p *POMDP) NumStates() int       { return p.nStates }
func (p *POMDP) NumActions() int      { return p.nActions }
func (p *POMDP) NumObservations() int { return p.nObservations }
func (p *POMDP) Discount() float64    { return p.discount }
func (p *POMDP) MinReward() float64   { return p.minReward }

func (p *POMDP) Reward(s, a int) float64 {
	return p.reward.At(s, a)
}

func (p *POMDP) Transition(s, a, sNext int) float64 {
	return p.transition[a].At(s, sNext)
}

func (p *POMDP) Observation(a, sNext, o int) float64 {
	return p.observation[a].At(sNext, o)
}

func (p *POMDP) ActionLabel(a int) string {
	return p.labels[a]
}

// ActionIndex resolves a label produced by ActionLabel.
func (p *POMDP) ActionIndex(label string) (int, bool) {
	for a, l := range p.labels {
		if l == label {
			return a, true
		}
	}
	return -1, false
}

// InitialBelief returns a fresh belief so that callers never share the lazily
// filled observation cache.
func (p *POMDP) InitialBelief() *Belief {
	entries := make([]float64, p.nStates)
	copy(entries, p.initial)
	return NewBelief(entries)
}

func (p *POMDP) TransitionMatrix(a int) mat.Matrix {
	return p.transition[a]
}

func (p *POMDP) ObservationMatrix(a int) mat.Matrix {
	return p.observation[a]
}

// ObservationPossible reports whether o has positive probability in some
// successor state of action a.
func ObservationPossible(m Model, a, o int) bool {
	for s := 0; s < m.NumStates(); s++ {
		if m.Observation(a, s, o) > 0 {
			return true
		}
	}
	return false
}

type matrixModel interface {
	TransitionMatrix(a int) mat.Matrix
	ObservationMatrix(a int) mat.Matrix
}

// TransitionMatrix returns P(s' | s, a) as a states x states matrix.
func TransitionMatrix(m Model, a int) mat.Matrix {
	if mm, ok := m.(matrixModel); ok {
		return mm.TransitionMatrix(a)
	}
	n := m.NumStates()
	t := mat.NewDense(n, n, nil)
	for s := 0; s < n; s++ {
		for sNext := 0; sNext < n; sNext++ {
			t.Set(s, sNext, m.Transition(s, a, sNext))
		}
	}
	return t
}

// ObservationMatrix returns P(o | a, s') as a states x observations matrix.
func ObservationMatrix(m Model, a int) mat.Matrix {
	if mm, ok := m.(matrixModel); ok {
		return mm.ObservationMatrix(a)
	}
	n, k := m.NumStates(), m.NumObservations()
	obs := mat.NewDense(n, k, nil)
	for s := 0; s < n; s++ {
		for o := 0; o < k; o++ {
			obs.Set(s, o, m.Observation(a, s, o))
		}
	}
	return obs
}

func (p *POMDP) UpdateBelief(b *Belief, a, o int) (*Belief, error) {
	return UpdateBelief(p, b, a, o)
}

func (p *POMDP) ObservationPossible(a, o int) bool {
	return ObservationPossible(p, a, o)
}
