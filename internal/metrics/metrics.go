// Package metrics exposes scheduler counters in Prometheus form.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ossched"

// Metrics holds the collectors updated by a scheduler.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	admitted       *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	dispatched     *prometheus.CounterVec
	idle           prometheus.Counter
	replenishments prometheus.Counter
	queueDepth     *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
// Pass prometheus.NewRegistry() in tests to keep registrations isolated.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admitted_total",
			Help:      "Processes placed on a ready queue, by queue level.",
		}, []string{"level"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Admissions refused, by reason.",
		}, []string{"reason"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatched_total",
			Help:      "Processes handed to a CPU, by queue level.",
		}, []string{"level"}),
		idle: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idle_selects_total",
			Help:      "Select calls that found no runnable process.",
		}),
		replenishments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replenishments_total",
			Help:      "Global slot budget resets.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Processes waiting per ready queue level.",
		}, []string{"level"}),
	}
	for _, c := range []prometheus.Collector{m.admitted, m.rejected, m.dispatched, m.idle, m.replenishments, m.queueDepth} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func label(level int) string { return strconv.Itoa(level) }

// Admitted records a process placed on queue level with depth waiting afterwards.
func (m *Metrics) Admitted(level, depth int) {
	if m == nil {
		return
	}
	m.admitted.WithLabelValues(label(level)).Inc()
	m.queueDepth.WithLabelValues(label(level)).Set(float64(depth))
}

// Rejected records a refused admission.
func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

// Dispatched records a process popped from queue level.
func (m *Metrics) Dispatched(level, depth int) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(label(level)).Inc()
	m.queueDepth.WithLabelValues(label(level)).Set(float64(depth))
}

// Idle records a select that returned no process.
func (m *Metrics) Idle() {
	if m == nil {
		return
	}
	m.idle.Inc()
}

// Replenished records a global budget reset.
func (m *Metrics) Replenished() {
	if m == nil {
		return
	}
	m.replenishments.Inc()
}

// Reset zeroes the queue depth gauges after a scheduler Init.
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.queueDepth.Reset()
}
