package simulator

import (
	"errors"
	"fmt"

	"github.com/sw965/solvepomdp/alpha"
	"github.com/sw965/solvepomdp/pomdp"
)

var ErrPolicyGraph = errors.New("simulator: invalid policy graph")

// Policy chooses actions during a simulated run. Implementations keep
// per-run state and are owned by a single worker.
type Policy interface {
	Action(b *pomdp.Belief) int
	// Update tells the policy that a was executed and o observed.
	Update(a, o int)
	Reset()
}

// VectorPolicy acts greedily with respect to a value function.
type VectorPolicy struct {
	vectors alpha.Set
}

func NewVectorPolicy(vectors alpha.Set) *VectorPolicy {
	return &VectorPolicy{vectors: vectors}
}

func (p *VectorPolicy) Action(b *pomdp.Belief) int {
	return p.vectors[alpha.BestIndex(b.Entries, p.vectors)].Action
}

func (p *VectorPolicy) Update(int, int) {}
func (p *VectorPolicy) Reset()          {}

// FSCPolicy is a finite-state controller. It ignores beliefs.
type FSCPolicy struct {
	initial int
	current int
	actions []int
	next    [][]int
}

// NewFSCPolicy builds a controller whose node i executes actions[i] and
// moves to next[i][o] after observation o. Negative successors mark
// transitions that cannot happen and are sent to node 0.
func NewFSCPolicy(initial int, actions []int, next [][]int) (*FSCPolicy, error) {
	n := len(actions)
	if initial < 0 || initial >= n || len(next) != n {
		return nil, fmt.Errorf("%w: %d nodes, %d successor rows, initial node %d", ErrPolicyGraph, n, len(next), initial)
	}
	links := make([][]int, n)
	for i, row := range next {
		links[i] = make([]int, len(row))
		for o, j := range row {
			switch {
			case j >= n:
				return nil, fmt.Errorf("%w: node %d links to missing node %d", ErrPolicyGraph, i, j)
			case j < 0:
				links[i][o] = 0
			default:
				links[i][o] = j
			}
		}
	}
	return &FSCPolicy{initial: initial, current: initial, actions: actions, next: links}, nil
}

// FSCFromVectors starts the controller at the best vector for b0 and
// follows each vector's ObsSource.
func FSCFromVectors(vectors alpha.Set, b0 []float64) (*FSCPolicy, error) {
	actions := make([]int, len(vectors))
	next := make([][]int, len(vectors))
	for i, v := range vectors {
		if v.ObsSource == nil {
			return nil, fmt.Errorf("%w: vector %d has no successors", ErrPolicyGraph, i)
		}
		actions[i] = v.Action
		next[i] = v.ObsSource
	}
	return NewFSCPolicy(alpha.BestIndex(b0, vectors), actions, next)
}

func (p *FSCPolicy) Node() int { return p.current }

func (p *FSCPolicy) Action(*pomdp.Belief) int {
	return p.actions[p.current]
}

func (p *FSCPolicy) Update(_, o int) {
	p.current = p.next[p.current][o]
}

func (p *FSCPolicy) Reset() {
	p.current = p.initial
}

// Clone returns a controller with the same graph, reset to its initial node.
func (p *FSCPolicy) Clone() *FSCPolicy {
	return &FSCPolicy{initial: p.initial, current: p.initial, actions: p.actions, next: p.next}
}
