package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/sw965/solvepomdp/alpha"
	"github.com/sw965/solvepomdp/pomdp"
	"github.com/sw965/solvepomdp/prune"
)

// rewardVectors returns one vector per action holding R(., a).
func rewardVectors(m pomdp.Model) alpha.Set {
	V0 := make(alpha.Set, m.NumActions())
	for a := range V0 {
		entries := make([]float64, m.NumStates())
		for s := range entries {
			entries[s] = m.Reward(s, a)
		}
		V0[a] = alpha.New(entries)
		V0[a].Action = a
	}
	return V0
}

type backProjector struct {
	nStates       int
	nObservations int
	discount      float64
	rewards       alpha.Set
	// kernels[a][o][s][s'] = P(s' | s, a) P(o | a, s')
	kernels [][]*mat.Dense
}

func newBackProjector(m pomdp.Model, rewards alpha.Set) *backProjector {
	n := m.NumStates()
	kernels := make([][]*mat.Dense, m.NumActions())
	for a := range kernels {
		T := pomdp.TransitionMatrix(m, a)
		O := pomdp.ObservationMatrix(m, a)
		kernels[a] = make([]*mat.Dense, m.NumObservations())
		for o := range kernels[a] {
			k := mat.NewDense(n, n, nil)
			k.Apply(func(_, sNext int, p float64) float64 {
				return p * O.At(sNext, o)
			}, T)
			kernels[a][o] = k
		}
	}
	return &backProjector{
		nStates:       n,
		nObservations: m.NumObservations(),
		discount:      m.Discount(),
		rewards:       rewards,
		kernels:       kernels,
	}
}

// collection builds G_a^o for every observation o. Vector k of set o is
// R_a / |O| + discount * g_k, tagged with Action a, Index k and Obs o.
func (bp *backProjector) collection(a int, V alpha.Set) alpha.Collection {
	share := 1 / float64(bp.nObservations)
	g := mat.NewVecDense(bp.nStates, nil)
	c := make(alpha.Collection, bp.nObservations)
	for o := range c {
		set := make(alpha.Set, len(V))
		for k, v := range V {
			g.MulVec(bp.kernels[a][o], mat.NewVecDense(bp.nStates, v.Entries))
			entries := make([]float64, bp.nStates)
			floats.ScaleTo(entries, bp.discount, g.RawVector().Data)
			floats.AddScaled(entries, share, bp.rewards[a].Entries)

			av := alpha.New(entries)
			av.Action = a
			av.Index = k
			av.Obs = o
			set[k] = av
		}
		c[o] = set
	}
	return c
}

func (e *Exact) nextStage(bp *backProjector, method prune.Method, V alpha.Set) alpha.Set {
	G := make([]alpha.Set, len(bp.kernels))
	for a := range G {
		G[a] = method.CrossSum(bp.collection(a, V))
	}
	return method.MergeSets(G)
}

// relinkSources rewrites the successors of next, which index prev, to the
// vector of next closest to prev[k] in max norm.
func relinkSources(next, prev alpha.Set) {
	nearest := make([]int, len(prev))
	for k, p := range prev {
		best, bestDist := -1, 0.0
		for i, v := range next {
			d := floats.Distance(p.Entries, v.Entries, math.Inf(1))
			if best == -1 || d < bestDist {
				best, bestDist = i, d
			}
		}
		nearest[k] = best
	}
	for _, v := range next {
		for o, k := range v.ObsSource {
			if k >= 0 {
				v.ObsSource[o] = nearest[k]
			}
		}
	}
}
