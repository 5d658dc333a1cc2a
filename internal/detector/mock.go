package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a scripted Detector for tests.
// With a sequence set it returns one entry per Detect call, repeating the
// last entry once the sequence is exhausted.
type MockDetector struct {
	mu       sync.Mutex
	hands    []HandLandmarks
	sequence [][]HandLandmarks
	calls    int
	err      error
}

// NewMockDetector creates a detector that reports no hands.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands returned by every Detect call.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
	m.sequence = nil
}

// SetSequence scripts a per-call result sequence.
func (m *MockDetector) SetSequence(seq [][]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = seq
	m.calls = 0
}

// SetError makes Detect fail with err until cleared with nil.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the scripted result.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.calls
	m.calls++

	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		if i >= len(m.sequence) {
			i = len(m.sequence) - 1
		}
		return m.sequence[i], nil
	}
	return m.hands, nil
}

// Close is a no-op.
func (m *MockDetector) Close() error {
	return nil
}

// pose builds a right hand from 21 (x, y, z) triples in landmark order.
func pose(coords [NumLandmarks][3]float64) HandLandmarks {
	h := HandLandmarks{Handedness: "Right", Score: 0.95}
	for i, c := range coords {
		h.Points[i] = Point3D{X: c[0], Y: c[1], Z: c[2]}
	}
	return h
}

// ThumbsUpLandmarks returns a thumbs-up pose: thumb raised, other fingers curled.
func ThumbsUpLandmarks() HandLandmarks {
	return pose([NumLandmarks][3]float64{
		{0.50, 0.80, 0.00},
		{0.55, 0.75, 0.00}, {0.58, 0.65, 0.00}, {0.58, 0.50, 0.00}, {0.58, 0.35, 0.00},
		{0.55, 0.70, -0.02}, {0.55, 0.68, -0.05}, {0.52, 0.70, -0.04}, {0.50, 0.72, -0.02},
		{0.50, 0.68, -0.02}, {0.50, 0.66, -0.05}, {0.47, 0.68, -0.04}, {0.45, 0.70, -0.02},
		{0.45, 0.70, -0.02}, {0.45, 0.68, -0.05}, {0.42, 0.70, -0.04}, {0.40, 0.72, -0.02},
		{0.40, 0.72, -0.02}, {0.40, 0.70, -0.05}, {0.37, 0.72, -0.04}, {0.35, 0.74, -0.02},
	})
}

// OpenPalmLandmarks returns an open palm with every finger extended.
func OpenPalmLandmarks() HandLandmarks {
	return pose([NumLandmarks][3]float64{
		{0.50, 0.80, 0.00},
		{0.55, 0.75, 0.02}, {0.62, 0.70, 0.03}, {0.68, 0.65, 0.03}, {0.73, 0.60, 0.03},
		{0.55, 0.68, 0.00}, {0.57, 0.55, 0.00}, {0.58, 0.45, 0.00}, {0.58, 0.35, 0.00},
		{0.50, 0.66, 0.00}, {0.50, 0.52, 0.00}, {0.50, 0.40, 0.00}, {0.50, 0.28, 0.00},
		{0.45, 0.68, 0.00}, {0.43, 0.55, 0.00}, {0.42, 0.45, 0.00}, {0.42, 0.35, 0.00},
		{0.40, 0.70, 0.00}, {0.37, 0.60, 0.00}, {0.35, 0.50, 0.00}, {0.34, 0.42, 0.00},
	})
}

// CollapsedLandmarks returns a degenerate hand with every point at the same place.
func CollapsedLandmarks() HandLandmarks {
	var coords [NumLandmarks][3]float64
	for i := range coords {
		coords[i] = [3]float64{0.5, 0.5, 0}
	}
	return pose(coords)
}
