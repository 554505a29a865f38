package pomdp

import "errors"

var (
	// ErrImpossibleObservation indicates P(o | b, a) is zero.
	ErrImpossibleObservation = errors.New("pomdp: observation cannot be observed after action in belief")
	// ErrDimension indicates a table does not match the declared sizes.
	ErrDimension = errors.New("pomdp: table dimensions do not match model sizes")
	// ErrBelief indicates a belief whose entries do not sum to one.
	ErrBelief = errors.New("pomdp: belief entries must be non-negative and sum to one")
)
