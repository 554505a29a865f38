// Package prune implements Generalized Incremental Pruning (Cassandra,
// Littman and Zhang 1997) over the witness oracle in package lp, with the
// accelerated variant of Walraven and Spaan (2017) and a variant that traces
// policy graph successors.
package prune

import (
	"fmt"
	"math"

	"github.com/sw965/solvepomdp/alpha"
	"github.com/sw965/solvepomdp/lp"
)

const (
	StandardName    = "standard"
	AcceleratedName = "accelerated"
	PolicyGraphName = "policygraph"
)

// Method removes vectors that do not contribute to the upper surface of a
// value function.
type Method interface {
	Name() string
	// CrossSum prunes every set of c, then folds the sets left to right,
	// pruning after each cross-sum.
	CrossSum(c alpha.Collection) alpha.Set
	// MergeSets returns the pruned union of sets.
	MergeSets(sets []alpha.Set) alpha.Set
	Prune(vectors alpha.Set) alpha.Set
}

// New returns the method registered under name. Options only affect the
// accelerated method.
func New(name string, oracle lp.Model, opts ...Option) (Method, error) {
	switch name {
	case StandardName:
		return NewStandard(oracle), nil
	case AcceleratedName:
		return NewAccelerated(oracle, opts...), nil
	case PolicyGraphName:
		return NewPolicyGraph(oracle), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
}

type regionFinder func(w *alpha.Vector, U alpha.Set) ([]float64, bool)

// witnessPrune keeps taking the first remaining vector, asks the oracle for
// a belief where it beats the kept set D, and moves the best remaining vector
// at that belief into D.
func witnessPrune(vectors alpha.Set, find regionFinder, tol float64) alpha.Set {
	W := make(alpha.Set, len(vectors))
	copy(W, vectors)
	D := make(alpha.Set, 0, len(vectors))

	for len(W) > 0 {
		w := W[0]
		if alpha.IsPointwiseDominated(w, D) {
			W = W.Remove(0)
			continue
		}
		b, ok := find(w, D)
		if !ok {
			W = W.Remove(0)
			continue
		}
		best := bestAtWitness(b, W, tol)
		D = append(D, W[best])
		W = W.Remove(best)
	}
	return D
}

// bestAtWitness returns the index of the vector of W with the largest value
// at b. Values within tol of the maximum tie and the lexicographically
// largest entries win, so a vector is never kept ahead of one that dominates
// it in every state.
func bestAtWitness(b []float64, W alpha.Set, tol float64) int {
	maxValue := math.Inf(-1)
	for _, w := range W {
		maxValue = math.Max(maxValue, alpha.Dot(w, b))
	}
	best := -1
	for i, w := range W {
		if alpha.Dot(w, b) < maxValue-tol {
			continue
		}
		if best == -1 || lexGreater(w.Entries, W[best].Entries, tol) {
			best = i
		}
	}
	return best
}

// lexGreater compares x and y entry by entry, treating entries within tol
// as equal.
func lexGreater(x, y []float64, tol float64) bool {
	for s := range x {
		switch {
		case x[s] > y[s]+tol:
			return true
		case x[s] < y[s]-tol:
			return false
		}
	}
	return false
}

func merge(sets []alpha.Set) alpha.Set {
	n := 0
	for _, set := range sets {
		n += len(set)
	}
	all := make(alpha.Set, 0, n)
	for _, set := range sets {
		all = append(all, set...)
	}
	return all
}

func mustFold(c alpha.Collection) {
	if len(c) == 0 {
		panic("prune: cross-sum of an empty collection")
	}
}
