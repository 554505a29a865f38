package prune

import "errors"

// ErrUnknownMethod indicates a pruning method name with no implementation.
var ErrUnknownMethod = errors.New("prune: unknown pruning method")
