// metrics.go provides optional Prometheus instrumentation.

package gatey

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Flush triggers, used as the "trigger" label.
const (
	flushTimer    = "timer"
	flushCapacity = "capacity"
	flushManual   = "manual"
	flushExit     = "exit"
)

// metrics holds the SDK series. A nil *metrics records nothing.
type metrics struct {
	captured  *prometheus.CounterVec
	delivered prometheus.Counter
	failed    prometheus.Counter
	flushes   *prometheus.CounterVec
	queueLen  prometheus.Gauge
}

// newMetrics registers the series on registerer. A nil registerer disables
// metrics; the default registerer is never used implicitly.
func newMetrics(registerer prometheus.Registerer) *metrics {
	if registerer == nil {
		return nil
	}
	factory := promauto.With(registerer)

	return &metrics{
		captured: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatey_events_captured_total",
				Help: "Total number of events captured, by level",
			},
			[]string{"level"},
		),
		delivered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gatey_events_delivered_total",
				Help: "Total number of events delivered by the transport",
			},
		),
		failed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gatey_events_failed_total",
				Help: "Total number of failed delivery attempts",
			},
		),
		flushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatey_buffer_flushes_total",
				Help: "Total number of buffer flush rounds, by trigger",
			},
			[]string{"trigger"},
		),
		queueLen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gatey_buffer_queue_length",
				Help: "Number of events waiting in the buffer",
			},
		),
	}
}

func (m *metrics) observeCaptured(level string) {
	if m == nil {
		return
	}
	m.captured.WithLabelValues(level).Inc()
}

func (m *metrics) observeDelivery(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.delivered.Inc()
	} else {
		m.failed.Inc()
	}
}

func (m *metrics) observeFlush(trigger string) {
	if m == nil {
		return
	}
	m.flushes.WithLabelValues(trigger).Inc()
}

func (m *metrics) setQueueLength(n int) {
	if m == nil {
		return
	}
	m.queueLen.Set(float64(n))
}
