package pomdp

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
)

const beliefSumTolerance = 1e-6

// Belief is a point on the probability simplex. History records the
// action-observation pairs that produced it.
type Belief struct {
	Entries []float64
	History []int

	once    sync.Once
	aoProbs [][]float64
}

func NewBelief(entries []float64) *Belief {
	return &Belief{Entries: entries}
}

func NewUniformBelief(nStates int) *Belief {
	entries := make([]float64, nStates)
	for s := range entries {
		entries[s] = 1.0 / float64(nStates)
	}
	return NewBelief(entries)
}

func (b *Belief) At(s int) float64 {
	return b.Entries[s]
}

// Validate checks non-negativity and that the entries sum to one.
func (b *Belief) Validate() error {
	for _, p := range b.Entries {
		if p < 0 || math.IsNaN(p) {
			return ErrBelief
		}
	}
	if math.Abs(floats.Sum(b.Entries)-1) > beliefSumTolerance {
		return ErrBelief
	}
	return nil
}

// ActionObservationProb returns P(o | b, a). The full table is computed on
// first use and reused afterwards.
func (b *Belief) ActionObservationProb(m Model, a, o int) float64 {
	b.once.Do(func() {
		b.aoProbs = actionObservationProbs(m, b.Entries)
	})
	return b.aoProbs[a][o]
}

// successor carries b's history extended by (a, o).
func (b *Belief) successor(entries []float64, a, o int) *Belief {
	history := make([]int, len(b.History), len(b.History)+2)
	copy(history, b.History)
	return &Belief{Entries: entries, History: append(history, a, o)}
}

func (b *Belief) String() string {
	return fmt.Sprintf("<BP%v>", b.Entries)
}

func actionObservationProbs(m Model, belief []float64) [][]float64 {
	nStates := m.NumStates()
	probs := make([][]float64, m.NumActions())
	predicted := make([]float64, nStates)
	for a := range probs {
		for sNext := 0; sNext < nStates; sNext++ {
			p := 0.0
			for s := 0; s < nStates; s++ {
				p += m.Transition(s, a, sNext) * belief[s]
			}
			predicted[sNext] = p
		}
		probs[a] = make([]float64, m.NumObservations())
		for o := range probs[a] {
			p := 0.0
			for sNext := 0; sNext < nStates; sNext++ {
				p += m.Observation(a, sNext, o) * predicted[sNext]
			}
			probs[a][o] = p
		}
	}
	return probs
}

// UpdateBelief applies Bayes' rule to b after executing a and observing o.
func UpdateBelief(m Model, b *Belief, a, o int) (*Belief, error) {
	nc := b.ActionObservationProb(m, a, o)
	if nc <= 0 {
		return nil, fmt.Errorf("%w: a=%d o=%d", ErrImpossibleObservation, a, o)
	}
	nStates := m.NumStates()
	entries := make([]float64, nStates)
	for sNext := range entries {
		p := 0.0
		for s := 0; s < nStates; s++ {
			p += m.Transition(s, a, sNext) * b.Entries[s]
		}
		entries[sNext] = p * m.Observation(a, sNext, o) / nc
	}
	return b.successor(entries, a, o), nil
}
