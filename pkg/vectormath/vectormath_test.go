package vectormath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Run("scales to unit length", func(t *testing.T) {
		v := Normalize([]float32{3, 4})

		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
	})

	t.Run("zero vector unchanged", func(t *testing.T) {
		v := Normalize([]float32{0, 0, 0})

		assert.Equal(t, []float32{0, 0, 0}, v)
	})
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors", func(t *testing.T) {
		assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	})

	t.Run("orthogonal vectors", func(t *testing.T) {
		assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	})

	t.Run("opposite vectors", func(t *testing.T) {
		assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	})

	t.Run("mismatched lengths yield zero", func(t *testing.T) {
		assert.Zero(t, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	})
}

func TestCosineDistance(t *testing.T) {
	t.Run("range is 0 to 2", func(t *testing.T) {
		d := CosineDistance([]float32{1, 0}, []float32{-1, 0})

		assert.InDelta(t, 2.0, d, 1e-9)
		assert.False(t, math.IsNaN(d))
	})

	t.Run("identical vectors have zero distance", func(t *testing.T) {
		assert.InDelta(t, 0.0, CosineDistance([]float32{0.5, 0.5}, []float32{0.5, 0.5}), 1e-9)
	})
}
