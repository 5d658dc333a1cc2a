package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Frame(true)
	m.Frame(false)
	m.Inference(20*time.Millisecond, nil)
	m.Inference(5*time.Millisecond, errors.New("boom"))
	m.Dropped()
	m.LabelChanged("hello")
	m.LabelChanged("hello")
	m.SetReady(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.frames))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hands))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.inferences))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inferenceErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.labelChanges.WithLabelValues("hello")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ready))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Frame(true)
		m.Inference(time.Millisecond, nil)
		m.Dropped()
		m.LabelChanged("x")
		m.SetReady(false)
	})
}
