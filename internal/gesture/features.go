// Package gesture turns a stream of hand landmark sets into a stable, debounced
// gesture label: feature extraction, a sliding window, stride-gated
// classification and majority-vote smoothing.
package gesture

import (
	"math"

	"github.com/ayusman/mudra/internal/detector"
)

// RawFeatureDim is the number of values extracted from one hand: x, y, z for
// each of the 21 landmarks.
const RawFeatureDim = detector.NumLandmarks * 3

// minScale is the smallest wrist to middle-MCP length treated as a usable
// reference. Shorter (or non-finite) lengths fall back to 1.
const minScale = 1e-6

// FeatureVector is one frame's normalised hand pose. An all-zero vector means
// no hand was detected in that frame. Vectors are never modified after creation.
type FeatureVector []float64

// IsZero reports whether v is the no-hand vector.
func (v FeatureVector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Extractor converts landmark sets into fixed-length feature vectors.
type Extractor struct {
	dim int
}

// NewExtractor returns an extractor producing vectors of length featDim
// (RawFeatureDim when featDim <= 0).
func NewExtractor(featDim int) *Extractor {
	if featDim <= 0 {
		featDim = RawFeatureDim
	}
	return &Extractor{dim: featDim}
}

// Dim is the output vector length.
func (e *Extractor) Dim() int { return e.dim }

// Zero returns the no-hand vector.
func (e *Extractor) Zero() FeatureVector {
	return make(FeatureVector, e.dim)
}

// Extract normalises hand relative to the wrist and scales it by the wrist to
// middle-MCP distance, emitting x, y, z per landmark in landmark order.
// A nil hand yields the zero vector. When the configured dimension differs
// from RawFeatureDim the tail is truncated or zero-padded.
func (e *Extractor) Extract(hand *detector.HandLandmarks) FeatureVector {
	out := e.Zero()
	if hand == nil {
		return out
	}

	wrist := sanitize(hand.Points[detector.Wrist])
	ref := sanitize(hand.Points[detector.MiddleMCP])

	scale := detector.Distance(ref, wrist)
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale < minScale {
		scale = 1.0
	}

	for i, raw := range hand.Points {
		p := sanitize(raw)
		base := i * 3
		for j, v := range [3]float64{
			(p.X - wrist.X) / scale,
			(p.Y - wrist.Y) / scale,
			(p.Z - wrist.Z) / scale,
		} {
			if base+j >= len(out) {
				return out
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			out[base+j] = v
		}
	}
	return out
}

// sanitize treats a non-finite z as a missing depth value.
func sanitize(p detector.Point3D) detector.Point3D {
	if math.IsNaN(p.Z) || math.IsInf(p.Z, 0) {
		p.Z = 0
	}
	return p
}
