package refresh

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the refresh-path counters/gauges exposed to the host
// process. Grounded on stats/common_prom.go's coreStats/iprom pairing
// (a prometheus.Registry plus a handful of named series), trimmed to
// what this pipeline actually measures: frames coalesced, refreshes
// skipped under back-pressure, and frames published.
type Metrics struct {
	FramesCoalesced prometheus.Counter
	RefreshSkipped  prometheus.Counter
	FramesPublished prometheus.Counter
	QueueDepth      prometheus.Gauge
}

// NewMetrics registers the refresh-path series on reg. Passing a
// non-nil registry is optional — callers that don't care about metrics
// (most unit tests) can pass a fresh prometheus.NewRegistry() so series
// never leak into the default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdpmux_frames_coalesced_total",
			Help: "Number of dirty-rectangle updates folded into the tracker.",
		}),
		RefreshSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdpmux_refresh_skipped_total",
			Help: "Number of refresh ticks dropped because the frame lock was held (back-pressure).",
		}),
		FramesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdpmux_frames_published_total",
			Help: "Number of DisplayUpdate records published to the outgoing queue.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rdpmux_outgoing_queue_depth",
			Help: "Current depth of the outgoing message queue.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.FramesCoalesced, m.RefreshSkipped, m.FramesPublished, m.QueueDepth)
	}
	return m
}
