// Package metrics exposes Prometheus collectors for the recognition pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	frames          prometheus.Counter
	hands           prometheus.Counter
	inferences      prometheus.Counter
	inferenceErrors prometheus.Counter
	dropped         prometheus.Counter
	inferenceTime   prometheus.Histogram
	labelChanges    *prometheus.CounterVec
	ready           prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudra_frames_total",
			Help: "Frames stepped through the pipeline.",
		}),
		hands: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudra_hand_frames_total",
			Help: "Frames in which a hand was detected.",
		}),
		inferences: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudra_inferences_total",
			Help: "Classifier invocations.",
		}),
		inferenceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudra_inference_errors_total",
			Help: "Classifier invocations that failed or returned malformed output.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mudra_inferences_dropped_total",
			Help: "Eligible windows skipped because an inference was already in flight.",
		}),
		inferenceTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mudra_inference_duration_seconds",
			Help:    "Classifier latency.",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		labelChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mudra_label_changes_total",
			Help: "Stable label transitions, by new label.",
		}, []string{"label"}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mudra_pipeline_ready",
			Help: "1 when model metadata is loaded and the pipeline can classify.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.frames, m.hands, m.inferences, m.inferenceErrors,
			m.dropped, m.inferenceTime, m.labelChanges, m.ready)
	}
	return m
}

// Frame counts one stepped frame.
func (m *Metrics) Frame(hand bool) {
	if m == nil {
		return
	}
	m.frames.Inc()
	if hand {
		m.hands.Inc()
	}
}

// Inference records one classifier call.
func (m *Metrics) Inference(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.inferences.Inc()
	m.inferenceTime.Observe(d.Seconds())
	if err != nil {
		m.inferenceErrors.Inc()
	}
}

// Dropped counts a window skipped because of an in-flight inference.
func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// LabelChanged counts a stable label transition.
func (m *Metrics) LabelChanged(label string) {
	if m == nil {
		return
	}
	m.labelChanges.WithLabelValues(label).Inc()
}

// SetReady reports pipeline readiness.
func (m *Metrics) SetReady(ready bool) {
	if m == nil {
		return
	}
	if ready {
		m.ready.Set(1)
	} else {
		m.ready.Set(0)
	}
}
