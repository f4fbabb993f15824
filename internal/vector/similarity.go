package vector

import "math"

// InnerProduct returns the inner product of a and b, or 0 when their lengths
// differ. For unit vectors it is the cosine similarity.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the Euclidean length of x.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// IsZero reports whether x has no direction; such vectors cannot be ranked by cosine.
func IsZero(x []float32) bool {
	return L2Norm(x) == 0
}

// Normalize scales x in place to unit length and returns it. Zero vectors are
// left unchanged.
func Normalize(x []float32) []float32 {
	norm := L2Norm(x)
	if norm == 0 {
		return x
	}
	inv := 1 / norm
	for i := range x {
		x[i] = float32(float64(x[i]) * inv)
	}
	return x
}
