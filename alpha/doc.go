// Package alpha implements the alpha-vector algebra used by exact POMDP value
// iteration: dot products with beliefs, cross-sums of vector sets with origin
// bookkeeping, pointwise domination and best-vector selection.
//
// A value function is a Set; its value at a belief b is max over the set of
// Dot(v, b), and the prescribed action is the Action of the maximising vector.
package alpha
