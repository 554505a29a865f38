package parser

import "errors"

// ErrSyntax indicates input that does not follow the .POMDP grammar.
var ErrSyntax = errors.New("parser: syntax error")
