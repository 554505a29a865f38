package alpha

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Vector is a linear function over the belief simplex tagged with the action
// it prescribes. Index, Obs, OriginU, OriginW and ObsSource are plain indices
// into sets owned by the caller; -1 means "not assigned".
type Vector struct {
	Entries []float64
	Action  int

	OriginU int
	OriginW int

	Index int
	Obs   int

	ObsSource []int
}

func New(entries []float64) *Vector {
	return &Vector{
		Entries: entries,
		Action:  -1,
		OriginU: -1,
		OriginW: -1,
		Index:   -1,
		Obs:     -1,
	}
}

func (v *Vector) Len() int {
	return len(v.Entries)
}

func (v *Vector) Clone() *Vector {
	return &Vector{
		Entries:   slices.Clone(v.Entries),
		Action:    v.Action,
		OriginU:   v.OriginU,
		OriginW:   v.OriginW,
		Index:     v.Index,
		Obs:       v.Obs,
		ObsSource: slices.Clone(v.ObsSource),
	}
}

func (v *Vector) String() string {
	return fmt.Sprintf("<a=%d %v>", v.Action, v.Entries)
}

// Dot panics if the belief and the vector differ in length.
func Dot(v *Vector, belief []float64) float64 {
	return floats.Dot(v.Entries, belief)
}

// Sum returns the elementwise sum of a and b. The result carries a's action.
func Sum(a, b *Vector) *Vector {
	entries := make([]float64, a.Len())
	floats.AddTo(entries, a.Entries, b.Entries)
	sum := New(entries)
	sum.Action = a.Action
	return sum
}

// Dominates reports whether d[s] >= z[s] for every state s.
func Dominates(d, z *Vector) bool {
	if d.Len() != z.Len() {
		panic("alpha: vector lengths do not match")
	}
	for s, x := range z.Entries {
		if d.Entries[s] < x {
			return false
		}
	}
	return true
}

// StampSource initialises v.ObsSource for a vector back-projected from
// vector v.Index under observation v.Obs.
func StampSource(v *Vector, nObservations int) {
	if v.ObsSource == nil {
		v.ObsSource = newSource(v, nObservations)
	}
}

func newSource(v *Vector, nObservations int) []int {
	source := make([]int, nObservations)
	for o := range source {
		source[o] = -1
	}
	if v.Obs >= 0 {
		source[v.Obs] = v.Index
	}
	return source
}
