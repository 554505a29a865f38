// Package solvepomdp is an exact POMDP solver. The solver itself lives in
// the solver package; this package only carries the release version.
package solvepomdp

const Version = "0.1.0"
