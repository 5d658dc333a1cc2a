package gesture

// Ring is a fixed-capacity FIFO. Pushing onto a full ring evicts the oldest
// element in O(1) by moving the head index instead of shifting storage.
type Ring[T any] struct {
	buf  []T
	head int // index of the oldest element
	size int
}

// NewRing returns an empty ring holding at most capacity elements (minimum 1).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, returning the evicted element when the ring was full.
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = v
		r.size++
		return evicted, false
	}
	evicted = r.buf[r.head]
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	return evicted, true
}

// Len is the number of stored elements.
func (r *Ring[T]) Len() int { return r.size }

// Cap is the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Full reports whether Len == Cap.
func (r *Ring[T]) Full() bool { return r.size == len(r.buf) }

// At returns the i-th element, oldest first. It panics when i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("gesture: ring index out of range")
	}
	return r.buf[(r.head+i)%len(r.buf)]
}

// Items copies the contents out, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := range out {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Reset empties the ring, dropping references held by the backing array.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.size = 0
}
