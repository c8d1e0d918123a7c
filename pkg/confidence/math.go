// Package confidence provides confidence score math utilities.
// Scores are on the 0-100 scale used by audit findings.
package confidence

// Mean returns the arithmetic mean of scores, 0 for none.
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// WeightedAverage calculates weighted confidence.
// ok is false when the inputs are mismatched or every weight is zero.
func WeightedAverage(scores []float64, weights []float64) (avg float64, ok bool) {
	if len(scores) == 0 || len(scores) != len(weights) {
		return 0, false
	}

	var sum, weightSum float64
	for i, s := range scores {
		sum += s * weights[i]
		weightSum += weights[i]
	}

	if weightSum == 0 {
		return 0, false
	}
	return sum / weightSum, true
}

// Clamp ensures confidence is in valid range [0, 100].
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Blend weights scores by weights, falling back to the plain mean when no weight applies.
func Blend(scores, weights []float64) float64 {
	if avg, ok := WeightedAverage(scores, weights); ok {
		return Clamp(avg)
	}
	return Clamp(Mean(scores))
}
