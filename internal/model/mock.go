package model

import (
	"context"
	"sync"
)

// MockClassifier is a scripted Classifier for tests.
type MockClassifier struct {
	mu     sync.Mutex
	output []float64
	err    error
	failOn map[int]error
	calls  int
	inputs []Tensor
	block  chan struct{}
	closed bool
	onCall func(call int)
}

// NewMockClassifier returns a classifier answering output on every call.
func NewMockClassifier(output []float64) *MockClassifier {
	return &MockClassifier{output: output, failOn: make(map[int]error)}
}

// SetOutput replaces the scores returned by later calls.
func (m *MockClassifier) SetOutput(output []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.output = output
}

// SetError makes every call fail with err until cleared with nil.
func (m *MockClassifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailOn makes the n-th call (1-based) fail with err.
func (m *MockClassifier) FailOn(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[n] = err
}

// Block makes calls wait until the returned release function is called.
func (m *MockClassifier) Block() (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.block = ch
	m.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// OnCall registers a hook run at the start of every call with its 1-based number.
func (m *MockClassifier) OnCall(fn func(call int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCall = fn
}

// Calls returns the number of Classify calls so far.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Inputs returns copies of every tensor received.
func (m *MockClassifier) Inputs() []Tensor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Tensor(nil), m.inputs...)
}

// Classify records the input and returns the scripted result.
func (m *MockClassifier) Classify(ctx context.Context, input Tensor) ([]float64, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClassifierClosed
	}
	m.calls++
	call := m.calls
	data := append([]float32(nil), input.Data...)
	m.inputs = append(m.inputs, Tensor{SeqLen: input.SeqLen, FeatDim: input.FeatDim, Data: data})
	block, hook := m.block, m.onCall
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failOn[call]; ok {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	return append([]float64(nil), m.output...), nil
}

// Close marks the classifier closed.
func (m *MockClassifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
