package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.Admitted(0, 1)
	m.Admitted(0, 2)
	m.Admitted(2, 1)
	m.Dispatched(0, 1)
	m.Replenished()
	m.Idle()
	m.Idle()
	m.Rejected("capacity")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.admitted.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.admitted.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatched.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueDepth.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replenishments))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.idle))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("capacity")))
}

func TestMetrics_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Admitted(0, 1)
		m.Dispatched(0, 0)
		m.Rejected("priority")
		m.Idle()
		m.Replenished()
		m.Reset()
	})
}
