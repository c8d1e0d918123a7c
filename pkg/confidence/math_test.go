package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 81.0, Mean([]float64{92, 70}))
}

func TestWeightedAverage(t *testing.T) {
	avg, ok := WeightedAverage([]float64{92, 70}, []float64{3, 1})
	assert.True(t, ok)
	assert.InDelta(t, 86.5, avg, 1e-9)

	_, ok = WeightedAverage([]float64{92}, []float64{0})
	assert.False(t, ok)

	_, ok = WeightedAverage([]float64{92}, []float64{1, 2})
	assert.False(t, ok)
}

func TestBlend(t *testing.T) {
	assert.InDelta(t, 86.5, Blend([]float64{92, 70}, []float64{3, 1}), 1e-9)
	assert.Equal(t, 81.0, Blend([]float64{92, 70}, []float64{0, 0}))
	assert.Equal(t, 0.0, Blend(nil, nil))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-5))
	assert.Equal(t, 100.0, Clamp(140))
	assert.Equal(t, 75.0, Clamp(75))
}
