// Package vectormath provides small float32 vector helpers shared by the
// similarity search path and the deterministic capability stubs.
package vectormath

import "math"

// Normalize scales v to unit length. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	magnitude := float32(math.Sqrt(sum))
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = val / magnitude
	}

	return normalized
}

// CosineSimilarity returns the cosine of the angle between a and b in [-1, 1].
// Vectors of different lengths or zero magnitude yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// CosineDistance returns 1 - CosineSimilarity(a, b), in [0, 2].
// Lower means more similar.
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}
