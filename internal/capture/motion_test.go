package capture

import (
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func solidFrame(v float64) gocv.Mat {
	m := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	m.SetTo(gocv.NewScalar(v, v, v, 0))
	return m
}

func TestMotion_Defaults(t *testing.T) {
	m := NewMotion(MotionConfig{})
	defer m.Close()

	if m.cfg != DefaultMotionConfig() {
		t.Errorf("cfg = %+v, want defaults", m.cfg)
	}
	if !m.Active() {
		t.Error("a new tracker should start active")
	}
}

func TestMotion_IdleAfterStillFrames(t *testing.T) {
	m := NewMotion(MotionConfig{Threshold: 1, IdleAfter: time.Second})
	defer m.Close()

	black := solidFrame(0)
	defer black.Close()

	start := time.Now()
	if active, changed := m.Observe(&black, start); !active || changed != 0 {
		t.Fatalf("baseline frame: active=%v changed=%v", active, changed)
	}
	if active, _ := m.Observe(&black, start.Add(500*time.Millisecond)); !active {
		t.Error("scene should stay active within IdleAfter")
	}
	if active, _ := m.Observe(&black, start.Add(3*time.Second)); active {
		t.Error("scene should be idle after IdleAfter without motion")
	}
	if m.Active() {
		t.Error("Active() should agree with Observe")
	}
}

func TestMotion_WakesOnChange(t *testing.T) {
	m := NewMotion(MotionConfig{Threshold: 1, IdleAfter: time.Second})
	defer m.Close()

	black := solidFrame(0)
	defer black.Close()
	white := solidFrame(255)
	defer white.Close()

	start := time.Now()
	m.Observe(&black, start)
	m.Observe(&black, start.Add(5*time.Second))
	if m.Active() {
		t.Fatal("expected idle scene")
	}

	active, changed := m.Observe(&white, start.Add(6*time.Second))
	if !active {
		t.Error("a full-frame change should wake the scene")
	}
	if changed < 50 {
		t.Errorf("changed = %.1f%%, want most of the frame", changed)
	}
}

func TestMotion_ResetAndNilFrame(t *testing.T) {
	m := NewMotion(MotionConfig{IdleAfter: time.Millisecond})
	defer m.Close()

	black := solidFrame(0)
	defer black.Close()

	now := time.Now()
	m.Observe(&black, now)
	m.Observe(&black, now.Add(time.Second))
	if m.Active() {
		t.Fatal("expected idle scene")
	}

	if active, changed := m.Observe(nil, now); active || changed != 0 {
		t.Errorf("nil frame should not change state: active=%v changed=%v", active, changed)
	}

	m.Reset()
	if !m.Active() {
		t.Error("Reset should make the scene active")
	}
	m.Close()
	m.Close()
}
