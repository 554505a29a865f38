package lp

import "errors"

var (
	// ErrUnknownSolver indicates a backend name with no registered implementation.
	ErrUnknownSolver = errors.New("lp: unknown LP solver")
	// ErrConfig indicates tolerances that cannot drive the oracle.
	ErrConfig = errors.New("lp: invalid oracle configuration")
)
