package gesture

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ConfidenceFunc maps a raw prediction to a display confidence in [0, 100].
type ConfidenceFunc func(RawPrediction) float64

// Confidence modes accepted by ParseConfidence.
const (
	ConfidenceLinear  = "linear"
	ConfidenceSoftmax = "softmax"
)

// LinearConfidence clamps (score+offset)/divisor to [0, 1] and scales it to a
// percentage. It is a heuristic for uncalibrated logits.
func LinearConfidence(offset, divisor float64) ConfidenceFunc {
	return func(p RawPrediction) float64 {
		v := (p.Score + offset) / divisor
		if math.IsNaN(v) {
			return 0
		}
		return math.Max(0, math.Min(1, v)) * 100
	}
}

// SoftmaxConfidence returns the softmax probability of the arg-max class as a
// percentage, computed over the full score vector. Without a score vector
// there is nothing to normalise against and the confidence is 0.
func SoftmaxConfidence() ConfidenceFunc {
	return func(p RawPrediction) float64 {
		if len(p.Scores) == 0 {
			return 0
		}
		v := math.Exp(p.Score-floats.LogSumExp(p.Scores)) * 100
		if math.IsNaN(v) {
			return 0
		}
		return math.Min(100, v)
	}
}

// ParseConfidence builds a ConfidenceFunc from its configured mode.
func ParseConfidence(mode string, offset, divisor float64) (ConfidenceFunc, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ConfidenceLinear:
		if divisor == 0 {
			return nil, fmt.Errorf("linear confidence: divisor must be non-zero")
		}
		return LinearConfidence(offset, divisor), nil
	case ConfidenceSoftmax:
		return SoftmaxConfidence(), nil
	default:
		return nil, fmt.Errorf("unknown confidence mode %q", mode)
	}
}
