package gesture

import (
	"reflect"
	"testing"
)

func TestRing_PushAndEvict(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 3; i++ {
		if _, evicted := r.Push(i); evicted {
			t.Fatalf("push %d evicted before the ring was full", i)
		}
	}
	if !r.Full() || r.Len() != 3 {
		t.Fatalf("expected full ring of 3, got len %d", r.Len())
	}

	old, evicted := r.Push(4)
	if !evicted || old != 1 {
		t.Errorf("expected to evict 1, got %d (%v)", old, evicted)
	}
	r.Push(5)
	if got := r.Items(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Errorf("expected [3 4 5], got %v", got)
	}
	if r.At(0) != 3 || r.At(2) != 5 {
		t.Errorf("At returned %d, %d", r.At(0), r.At(2))
	}
}

func TestRing_NeverExceedsCapacity(t *testing.T) {
	r := NewRing[int](4)
	for i := 0; i < 100; i++ {
		r.Push(i)
		if r.Len() > r.Cap() {
			t.Fatalf("len %d exceeds cap %d", r.Len(), r.Cap())
		}
	}
	if got := r.Items(); !reflect.DeepEqual(got, []int{96, 97, 98, 99}) {
		t.Errorf("expected last four values, got %v", got)
	}
}

func TestRing_Reset(t *testing.T) {
	r := NewRing[string](2)
	r.Push("a")
	r.Push("b")
	r.Push("c")
	r.Reset()
	if r.Len() != 0 || r.Full() {
		t.Fatalf("expected empty ring, got len %d", r.Len())
	}
	if r.Cap() != 2 {
		t.Errorf("reset changed capacity to %d", r.Cap())
	}
	r.Push("d")
	if got := r.Items(); !reflect.DeepEqual(got, []string{"d"}) {
		t.Errorf("expected [d], got %v", got)
	}
}

func TestRing_AtOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	r := NewRing[int](2)
	r.Push(1)
	r.At(1)
}

func TestRing_MinimumCapacity(t *testing.T) {
	if got := NewRing[int](0).Cap(); got != 1 {
		t.Errorf("expected capacity 1, got %d", got)
	}
}

func TestSequenceBuffer(t *testing.T) {
	b := NewSequenceBuffer(3, 2)
	for i := 1; i <= 2; i++ {
		b.Push(FeatureVector{float64(i), float64(-i)})
		if b.IsFull() {
			t.Fatalf("full after %d pushes", i)
		}
	}
	for i := 3; i <= 10; i++ {
		b.Push(FeatureVector{float64(i), float64(-i)})
		if !b.IsFull() {
			t.Fatalf("not full after %d pushes", i)
		}
		if b.Len() != 3 {
			t.Fatalf("expected 3 vectors, got %d", b.Len())
		}
	}

	snap := b.Snapshot()
	if snap[0][0] != 8 || snap[2][0] != 10 {
		t.Errorf("snapshot out of order: %v", snap)
	}

	tensor := b.Tensor()
	if got := tensor.Shape(); !reflect.DeepEqual(got, []int{1, 3, 2}) {
		t.Errorf("unexpected shape %v", got)
	}
	want := []float32{8, -8, 9, -9, 10, -10}
	if !reflect.DeepEqual(tensor.Data, want) {
		t.Errorf("expected %v, got %v", want, tensor.Data)
	}

	b.Push(FeatureVector{11, -11})
	b.Reset()
	if !reflect.DeepEqual(tensor.Data, want) {
		t.Errorf("tensor changed after push/reset: %v", tensor.Data)
	}
	if b.Len() != 0 || b.IsFull() {
		t.Errorf("expected empty buffer after reset")
	}
}

func TestSequenceBuffer_PartialTensor(t *testing.T) {
	b := NewSequenceBuffer(3, 2)
	b.Push(FeatureVector{1, 2, 3})
	want := []float32{1, 2, 0, 0, 0, 0}
	if got := b.Tensor().Data; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFitSequence(t *testing.T) {
	seq := func(n int) []FeatureVector {
		out := make([]FeatureVector, n)
		for i := range out {
			out[i] = FeatureVector{float64(i)}
		}
		return out
	}
	firsts := func(vs []FeatureVector) []float64 {
		out := make([]float64, len(vs))
		for i, v := range vs {
			if len(v) > 0 {
				out[i] = v[0]
			}
		}
		return out
	}

	tests := []struct {
		name   string
		in     int
		seqLen int
		want   []float64
	}{
		{"equal", 4, 4, []float64{0, 1, 2, 3}},
		{"downsample", 10, 4, []float64{0, 3, 6, 9}},
		{"downsample uneven", 7, 3, []float64{0, 3, 6}},
		{"single", 5, 1, []float64{0}},
		{"pad", 2, 4, []float64{0, 1, 0, 0}},
		{"empty", 0, 2, []float64{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitSequence(seq(tt.in), tt.seqLen, 1)
			if len(got) != tt.seqLen {
				t.Fatalf("expected %d frames, got %d", tt.seqLen, len(got))
			}
			if !reflect.DeepEqual(firsts(got), tt.want) {
				t.Errorf("expected %v, got %v", tt.want, firsts(got))
			}
		})
	}

	padded := FitSequence(seq(1), 3, 5)
	if len(padded[2]) != 5 || !padded[2].IsZero() {
		t.Errorf("padding should be zero vectors of feat_dim, got %v", padded[2])
	}
}
