package model

import (
	"context"
	"fmt"
	"math"
)

// Tensor is a dense float32 input of shape [1, SeqLen, FeatDim], row-major
// with the temporal axis outermost.
type Tensor struct {
	SeqLen  int
	FeatDim int
	Data    []float32
}

// NewTensor allocates a zeroed tensor.
func NewTensor(seqLen, featDim int) Tensor {
	return Tensor{SeqLen: seqLen, FeatDim: featDim, Data: make([]float32, seqLen*featDim)}
}

// Shape returns the full input shape including the batch dimension.
func (t Tensor) Shape() []int {
	return []int{1, t.SeqLen, t.FeatDim}
}

// Row returns the feature row for time step i.
func (t Tensor) Row(i int) []float32 {
	return t.Data[i*t.FeatDim : (i+1)*t.FeatDim]
}

// Classifier runs the gesture model on one window.
// Classify returns the raw, un-normalised per-class scores.
type Classifier interface {
	Classify(ctx context.Context, input Tensor) ([]float64, error)
	Close() error
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, input Tensor) ([]float64, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, input Tensor) ([]float64, error) {
	return f(ctx, input)
}

// Close is a no-op.
func (f ClassifierFunc) Close() error { return nil }

// ValidateOutput checks a score vector is non-empty and finite.
func ValidateOutput(scores []float64) error {
	if len(scores) == 0 {
		return fmt.Errorf("%w: empty", ErrMalformedOutput)
	}
	for i, v := range scores {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite score at %d", ErrMalformedOutput, i)
		}
	}
	return nil
}
