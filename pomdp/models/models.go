// Package models provides small, well-known POMDPs used in tests and demos.
package models

import (
	"gonum.org/v1/gonum/mat"

	"github.com/sw965/solvepomdp/pomdp"
)

const (
	TigerLeft = iota
	TigerRight
)

const (
	Listen = iota
	OpenLeft
	OpenRight
)

// Tiger is the classic tiger problem of Kaelbling, Littman and Cassandra.
// Listening costs 1 and is correct with probability 0.85; opening the tiger
// door costs 100, the other door pays 10, and opening resets the problem.
func Tiger(discount float64) *pomdp.POMDP {
	identity := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	uniform := mat.NewDense(2, 2, []float64{0.5, 0.5, 0.5, 0.5})
	hear := mat.NewDense(2, 2, []float64{0.85, 0.15, 0.15, 0.85})
	reward := mat.NewDense(2, 3, []float64{
		-1, -100, 10,
		-1, 10, -100,
	})
	m, err := pomdp.New(pomdp.Tables{
		Name:         "tiger",
		Discount:     discount,
		Reward:       reward,
		Transition:   []*mat.Dense{identity, uniform, uniform},
		Observation:  []*mat.Dense{hear, uniform, uniform},
		ActionLabels: []string{"listen", "open-left", "open-right"},
		Initial:      []float64{0.5, 0.5},
	})
	if err != nil {
		panic(err)
	}
	return m
}

// Revealing is a 2-state, 2-action, 2-observation problem with identity
// transitions and an observation that reveals the state. Action a earns
// rewards[s][a] in state s.
func Revealing(discount float64, rewards [2][2]float64) *pomdp.POMDP {
	identity := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	reward := mat.NewDense(2, 2, []float64{
		rewards[0][0], rewards[0][1],
		rewards[1][0], rewards[1][1],
	})
	m, err := pomdp.New(pomdp.Tables{
		Name:        "revealing",
		Discount:    discount,
		Reward:      reward,
		Transition:  []*mat.Dense{identity, identity},
		Observation: []*mat.Dense{identity, identity},
		Initial:     []float64{0.5, 0.5},
	})
	if err != nil {
		panic(err)
	}
	return m
}
