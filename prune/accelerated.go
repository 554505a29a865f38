package prune

import (
	"github.com/sw965/solvepomdp/alpha"
	"github.com/sw965/solvepomdp/lp"
	"github.com/sw965/solvepomdp/metrics"
)

// Competitor set labels reported to metrics.
const (
	competitorsD  = "d"
	competitorsD1 = "d1"
	competitorsD2 = "d2"
)

// Accelerated uses constraint generation in every witness query and, after a
// cross-sum, tests each candidate against the smallest of three equivalent
// competitor sets.
type Accelerated struct {
	lp      lp.Model
	metrics *metrics.Collector
}

// Option configures an Accelerated method.
type Option func(*Accelerated)

// WithMetrics counts which competitor set each post cross-sum query used.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Accelerated) {
		p.metrics = c
	}
}

func NewAccelerated(oracle lp.Model, opts ...Option) *Accelerated {
	p := &Accelerated{lp: oracle}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Accelerated) Name() string {
	return "Generalized incremental pruning with accelerated pruning"
}

func (p *Accelerated) CrossSum(c alpha.Collection) alpha.Set {
	mustFold(c)
	pruned := c.Map(p.Prune)
	crossSum := pruned[0]
	for _, W := range pruned[1:] {
		U := crossSum
		crossSum = p.pruneAfterCrossSum(alpha.CrossSum(U, W), U, W)
	}
	return crossSum
}

func (p *Accelerated) MergeSets(sets []alpha.Set) alpha.Set {
	return p.Prune(merge(sets))
}

func (p *Accelerated) Prune(vectors alpha.Set) alpha.Set {
	return witnessPrune(vectors, p.lp.FindRegionPointAccelerated, p.lp.Config().Epsilon)
}

// pruneAfterCrossSum prunes vectors = U (+) W. A candidate z = U[i] + W[j] is
// dominated by D exactly when it is dominated by
//
//	D1 = {U[i] + W[k] | k != j} plus {d in D | d.OriginW == j, d.OriginU != i}
//	D2 = {U[k] + W[j] | k != i} plus {d in D | d.OriginU == i, d.OriginW != j}
//
// so the LP is built over whichever of D, D1 and D2 has the fewest rows.
// D1 or D2 only win once D holds more than |W|-1 or |U|-1 vectors.
func (p *Accelerated) pruneAfterCrossSum(vectors, U, W alpha.Set) alpha.Set {
	Q := make(alpha.Set, len(vectors))
	copy(Q, vectors)
	D := make(alpha.Set, 0, len(vectors))

	for len(Q) > 0 {
		z := Q[0]
		if alpha.IsPointwiseDominated(z, D) {
			Q = Q.Remove(0)
			continue
		}

		i, j := z.OriginU, z.OriginW
		d1 := len(W) - 1
		d2 := len(U) - 1
		for _, d := range D {
			if d.OriginU != i && d.OriginW == j {
				d1++
			}
			if d.OriginW != j && d.OriginU == i {
				d2++
			}
		}

		var competitors alpha.Set
		switch {
		case d1 < len(D) && d1 < d2:
			p.metrics.ObserveCompetitors(competitorsD1)
			competitors = alpha.CrossSumRestricted(U[i], W, j)
			for _, d := range D {
				if d.OriginU != i && d.OriginW == j {
					competitors = append(competitors, d)
				}
			}
		case d2 < len(D) && d2 < d1:
			p.metrics.ObserveCompetitors(competitorsD2)
			competitors = alpha.CrossSumRestricted(W[j], U, i)
			for _, d := range D {
				if d.OriginW != j && d.OriginU == i {
					competitors = append(competitors, d)
				}
			}
		default:
			p.metrics.ObserveCompetitors(competitorsD)
			competitors = D
		}

		b, ok := p.lp.FindRegionPointAccelerated(z, competitors)
		if !ok {
			Q = Q.Remove(0)
			continue
		}
		best := bestAtWitness(b, Q, p.lp.Config().Epsilon)
		D = append(D, Q[best])
		Q = Q.Remove(best)
	}
	return D
}
