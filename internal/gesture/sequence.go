package gesture

// FitSequence adapts a recorded clip to exactly seqLen frames. A clip of the
// right length is returned as is; a longer clip is resampled uniformly, keeping
// its first and last frames; a shorter one is padded at the end with
// zero (no hand) vectors of featDim values.
func FitSequence(seq []FeatureVector, seqLen, featDim int) []FeatureVector {
	n := len(seq)
	switch {
	case seqLen <= 0:
		return nil
	case n == seqLen:
		return seq
	case n > seqLen:
		out := make([]FeatureVector, seqLen)
		if seqLen == 1 {
			out[0] = seq[0]
			return out
		}
		for i := range out {
			out[i] = seq[i*(n-1)/(seqLen-1)]
		}
		return out
	default:
		out := make([]FeatureVector, seqLen)
		copy(out, seq)
		for i := n; i < seqLen; i++ {
			out[i] = make(FeatureVector, featDim)
		}
		return out
	}
}
