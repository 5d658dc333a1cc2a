package gesture

import "github.com/ayusman/mudra/internal/model"

// SequenceBuffer is the sliding window of the most recent feature vectors.
type SequenceBuffer struct {
	ring    *Ring[FeatureVector]
	featDim int
}

// NewSequenceBuffer returns an empty window of seqLen vectors of featDim values.
func NewSequenceBuffer(seqLen, featDim int) *SequenceBuffer {
	return &SequenceBuffer{ring: NewRing[FeatureVector](seqLen), featDim: featDim}
}

// Push appends vec, evicting the oldest vector once the window is full.
func (b *SequenceBuffer) Push(vec FeatureVector) {
	b.ring.Push(vec)
}

// IsFull reports whether the window holds seq_len vectors. Once true it stays true
// until Reset.
func (b *SequenceBuffer) IsFull() bool { return b.ring.Full() }

// Len is the number of buffered vectors.
func (b *SequenceBuffer) Len() int { return b.ring.Len() }

// SeqLen is the window capacity.
func (b *SequenceBuffer) SeqLen() int { return b.ring.Cap() }

// Snapshot returns the buffered vectors in temporal order. The returned slice
// is independent of the buffer; the vectors themselves are immutable.
func (b *SequenceBuffer) Snapshot() []FeatureVector {
	return b.ring.Items()
}

// Tensor flattens the window into a freshly allocated [1, seq_len, feat_dim]
// tensor, oldest frame first. Rows missing from a partly filled window and
// values beyond a vector's length stay zero.
func (b *SequenceBuffer) Tensor() model.Tensor {
	t := model.NewTensor(b.ring.Cap(), b.featDim)
	for i := 0; i < b.ring.Len(); i++ {
		row := t.Row(i)
		for j, v := range b.ring.At(i) {
			if j >= len(row) {
				break
			}
			row[j] = float32(v)
		}
	}
	return t
}

// Reset empties the window.
func (b *SequenceBuffer) Reset() { b.ring.Reset() }
