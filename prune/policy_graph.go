package prune

import (
	"github.com/sw965/solvepomdp/alpha"
	"github.com/sw965/solvepomdp/lp"
)

// PolicyGraph prunes like Standard and stamps every surviving vector with
// the index of the back-projected vector it used under each observation.
type PolicyGraph struct {
	lp lp.Model
}

func NewPolicyGraph(oracle lp.Model) *PolicyGraph {
	return &PolicyGraph{lp: oracle}
}

func (p *PolicyGraph) Name() string {
	return "Incremental pruning with policy graph tracing"
}

func (p *PolicyGraph) CrossSum(c alpha.Collection) alpha.Set {
	mustFold(c)
	nObservations := len(c)
	pruned := c.Map(p.Prune)
	if nObservations == 1 {
		crossSum := pruned[0].Clone()
		for _, v := range crossSum {
			alpha.StampSource(v, nObservations)
		}
		return crossSum
	}
	crossSum := p.Prune(alpha.CrossSumPolicyGraph(pruned[0], pruned[1], nObservations))
	for _, W := range pruned[2:] {
		crossSum = p.Prune(alpha.CrossSumPolicyGraph(crossSum, W, nObservations))
	}
	return crossSum
}

func (p *PolicyGraph) MergeSets(sets []alpha.Set) alpha.Set {
	return p.Prune(merge(sets))
}

func (p *PolicyGraph) Prune(vectors alpha.Set) alpha.Set {
	return witnessPrune(vectors, p.lp.FindRegionPoint, p.lp.Config().Epsilon)
}
