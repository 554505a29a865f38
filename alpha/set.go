package alpha

import (
	"math"
	"slices"
)

// Set is an ordered collection of alpha-vectors.
type Set []*Vector

func (vs Set) Clone() Set {
	y := make(Set, len(vs))
	for i, v := range vs {
		y[i] = v.Clone()
	}
	return y
}

// Remove returns vs without the element at i. The backing array is reused.
func (vs Set) Remove(i int) Set {
	return slices.Delete(vs, i, i+1)
}

// Collection holds one vector set per observation for a fixed action.
type Collection []Set

// Map applies f to every set and returns the results as a new collection.
// The receiver is left untouched.
func (c Collection) Map(f func(Set) Set) Collection {
	y := make(Collection, len(c))
	for i, set := range c {
		y[i] = f(set)
	}
	return y
}

// CrossSum returns {u + w | u in U, w in W}. Result i*|W|+j records OriginU=i
// and OriginW=j.
func CrossSum(U, W Set) Set {
	y := make(Set, 0, len(U)*len(W))
	for i, u := range U {
		for j, w := range W {
			v := Sum(u, w)
			v.OriginU = i
			v.OriginW = j
			y = append(y, v)
		}
	}
	return y
}

// CrossSumRestricted returns {u + W[j] | j != exclude}.
func CrossSumRestricted(u *Vector, W Set, exclude int) Set {
	y := make(Set, 0, len(W))
	for j, w := range W {
		if j == exclude {
			continue
		}
		y = append(y, Sum(u, w))
	}
	return y
}

// CrossSumPolicyGraph is CrossSum that also propagates successor ids: the
// result inherits u's ObsSource and adds W's entry for w.Obs.
func CrossSumPolicyGraph(U, W Set, nObservations int) Set {
	y := make(Set, 0, len(U)*len(W))
	for i, u := range U {
		source := u.ObsSource
		if source == nil {
			source = newSource(u, nObservations)
		}
		for j, w := range W {
			v := Sum(u, w)
			v.OriginU = i
			v.OriginW = j
			v.ObsSource = slices.Clone(source)
			if w.Obs >= 0 {
				v.ObsSource[w.Obs] = w.Index
			}
			y = append(y, v)
		}
	}
	return y
}

// IsPointwiseDominated reports whether a single member of D is at least as
// large as z in every state.
func IsPointwiseDominated(z *Vector, D Set) bool {
	for _, d := range D {
		if Dominates(d, z) {
			return true
		}
	}
	return false
}

// BestIndex returns the index of the vector maximising the dot product with
// belief. Ties go to the first occurrence; an empty set yields -1.
func BestIndex(belief []float64, vs Set) int {
	best := -1
	bestValue := math.Inf(-1)
	for i, v := range vs {
		value := Dot(v, belief)
		if best == -1 || value > bestValue {
			best = i
			bestValue = value
		}
	}
	return best
}

func Value(belief []float64, vs Set) float64 {
	i := BestIndex(belief, vs)
	if i < 0 {
		return math.Inf(-1)
	}
	return Dot(vs[i], belief)
}
