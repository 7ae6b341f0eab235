// Package metrics exposes Prometheus collectors for the press pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the server registers.
type Metrics struct {
	pressesAccepted *prometheus.CounterVec
	pressesRejected *prometheus.CounterVec
	persistLatency  prometheus.Histogram

	connectedViewers prometheus.Gauge
	broadcastsSent   prometheus.Counter
	viewersEvicted   prometheus.Counter
}

// New registers the pipeline collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		pressesAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pressatlas",
			Name:      "presses_accepted_total",
			Help:      "Presses persisted and counted, by region.",
		}, []string{"region"}),
		pressesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pressatlas",
			Name:      "presses_rejected_total",
			Help:      "Presses rejected before broadcast, by reason.",
		}, []string{"reason"}),
		persistLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pressatlas",
			Name:      "press_persistence_seconds",
			Help:      "Combined event-write and tally-upsert latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		connectedViewers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "pressatlas",
			Name:      "connected_viewers",
			Help:      "Currently connected WebSocket viewers.",
		}),
		broadcastsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pressatlas",
			Name:      "broadcasts_sent_total",
			Help:      "Envelopes written to viewer connections.",
		}),
		viewersEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pressatlas",
			Name:      "viewers_evicted_total",
			Help:      "Viewers dropped for unresponsive send buffers.",
		}),
	}
}

// PressAccepted implements press.Recorder.
func (m *Metrics) PressAccepted(region string) {
	m.pressesAccepted.WithLabelValues(region).Inc()
}

// PressRejected implements press.Recorder.
func (m *Metrics) PressRejected(reason string) {
	m.pressesRejected.WithLabelValues(reason).Inc()
}

// ObservePersistence implements press.Recorder.
func (m *Metrics) ObservePersistence(d time.Duration) {
	m.persistLatency.Observe(d.Seconds())
}

// SetConnectedViewers records the current viewer count.
func (m *Metrics) SetConnectedViewers(n int) {
	m.connectedViewers.Set(float64(n))
}

// BroadcastSent counts one delivered envelope.
func (m *Metrics) BroadcastSent() {
	m.broadcastsSent.Inc()
}

// ViewerEvicted counts a slow-consumer eviction.
func (m *Metrics) ViewerEvicted() {
	m.viewersEvicted.Inc()
}
