package similarity

import (
	"gonum.org/v1/gonum/floats"
)

// L2 converts euclidean distance into a similarity in (0, 1]:
//
//	s(a, b) = 1 / (1 + sqrt(sum((a_i - b_i)^2)))
//
// Identical vectors score 1. The slices must have equal length.
func L2(a, b []float64) float64 {
	return 1.0 / (1.0 + floats.Distance(a, b, 2))
}

// Cosine is the cosine of the angle between a and b. A zero vector scores 0
// against everything.
func Cosine(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
