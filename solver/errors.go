package solver

import "errors"

var ErrConfig = errors.New("solver: invalid config")
