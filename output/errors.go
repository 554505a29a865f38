package output

import "errors"

// ErrFormat indicates a value function or policy graph file that cannot be parsed.
var ErrFormat = errors.New("output: malformed file")
