package mathx

import (
	"math"

	"golang.org/x/exp/constraints"
)

// SnapToZero returns 0 when |x| is below threshold and x otherwise.
func SnapToZero[X constraints.Float](x, threshold X) X {
	if X(math.Abs(float64(x))) < threshold {
		return 0
	}
	return x
}

// AboveOrZero returns x when it exceeds floor and 0 otherwise.
func AboveOrZero[X constraints.Float](x, floor X) X {
	if x > floor {
		return x
	}
	return 0
}

func AbsDiff[X constraints.Float](x, y X) X {
	return X(math.Abs(float64(x - y)))
}
