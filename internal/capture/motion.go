package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	// blurSize is the Gaussian kernel applied before differencing.
	blurSize = 21
	// pixelDelta is the grey-level change that counts a pixel as changed.
	pixelDelta = 25
)

// MotionConfig configures idle detection.
type MotionConfig struct {
	// Threshold is the percentage of changed pixels that counts as motion.
	Threshold float64
	// IdleAfter is how long without motion before the scene is idle.
	IdleAfter time.Duration
}

// DefaultMotionConfig returns 1% change and a 2 s idle delay.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{Threshold: 1.0, IdleAfter: 2 * time.Second}
}

// Motion tracks whether the scene is active by differencing consecutive
// blurred greyscale frames. A scene starts active so that a hand already in
// view is picked up, and turns idle after IdleAfter without motion.
type Motion struct {
	mu          sync.Mutex
	cfg         MotionConfig
	prev        gocv.Mat
	initialized bool
	closed      bool
	active      bool
	lastMotion  time.Time
}

// NewMotion returns an active tracker. Close it to free the baseline frame.
func NewMotion(cfg MotionConfig) *Motion {
	def := DefaultMotionConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = def.IdleAfter
	}
	return &Motion{cfg: cfg, prev: gocv.NewMat(), active: true, lastMotion: time.Now()}
}

// Observe compares frame with the previous one at time now. It returns the
// activity state after the frame and the percentage of pixels that changed.
func (m *Motion) Observe(frame *gocv.Mat, now time.Time) (active bool, changed float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || frame == nil || frame.Empty() {
		return m.active, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: blurSize, Y: blurSize}, 0, 0, gocv.BorderDefault)

	if m.initialized {
		diff := gocv.NewMat()
		defer diff.Close()
		gocv.AbsDiff(blurred, m.prev, &diff)
		gocv.Threshold(diff, &diff, pixelDelta, 255, gocv.ThresholdBinary)
		if total := diff.Rows() * diff.Cols(); total > 0 {
			changed = float64(gocv.CountNonZero(diff)) / float64(total) * 100
		}
	}
	blurred.CopyTo(&m.prev)
	m.initialized = true

	switch {
	case changed > m.cfg.Threshold:
		m.active = true
		m.lastMotion = now
	case m.active && now.Sub(m.lastMotion) > m.cfg.IdleAfter:
		m.active = false
	}
	return m.active, changed
}

// Active reports the current state.
func (m *Motion) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Reset forgets the baseline frame and makes the scene active again.
func (m *Motion) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = false
	m.active = true
	m.lastMotion = time.Now()
}

// Close releases the baseline frame. It is safe to call more than once.
func (m *Motion) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.prev.Close()
	m.closed = true
	m.initialized = false
}
