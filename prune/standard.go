package prune

import (
	"github.com/sw965/solvepomdp/alpha"
	"github.com/sw965/solvepomdp/lp"
)

type Standard struct {
	lp lp.Model
}

func NewStandard(oracle lp.Model) *Standard {
	return &Standard{lp: oracle}
}

func (p *Standard) Name() string {
	return "Generalized incremental pruning"
}

func (p *Standard) CrossSum(c alpha.Collection) alpha.Set {
	mustFold(c)
	pruned := c.Map(p.Prune)
	crossSum := pruned[0]
	for _, W := range pruned[1:] {
		crossSum = p.Prune(alpha.CrossSum(crossSum, W))
	}
	return crossSum
}

func (p *Standard) MergeSets(sets []alpha.Set) alpha.Set {
	return p.Prune(merge(sets))
}

func (p *Standard) Prune(vectors alpha.Set) alpha.Set {
	return witnessPrune(vectors, p.lp.FindRegionPoint, p.lp.Config().Epsilon)
}
