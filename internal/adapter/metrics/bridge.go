package metrics

import "github.com/prometheus/client_golang/prometheus"

// Relay directions.
const (
	DirectionDownstream = "downstream" // broker -> client
	DirectionUpstream   = "upstream"   // client -> broker
)

// BridgeMetrics tracks watch connections relaying between the broker and
// WebSocket clients.
type BridgeMetrics struct {
	ActiveBridges    prometheus.Gauge
	MessagesRelayed  *prometheus.CounterVec
	Terminations     *prometheus.CounterVec
	BridgeDuration   prometheus.Histogram
	DiscardedFrames  prometheus.Counter
	SubscribeFailure prometheus.Counter
	Rejected         *prometheus.CounterVec
}

func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	m := &BridgeMetrics{
		ActiveBridges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "active",
			Help:      "Number of watch connections currently relaying.",
		}),
		MessagesRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "messages_relayed_total",
			Help:      "Total number of messages relayed, by direction.",
		}, []string{"direction"}),
		Terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "terminations_total",
			Help:      "Total number of finished watch connections, by reason.",
		}, []string{"reason"}),
		BridgeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "duration_seconds",
			Help:      "Lifetime of watch connections in seconds.",
			Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
		}),
		DiscardedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "discarded_frames_total",
			Help:      "Client text frames dropped because upstream relay is disabled.",
		}),
		SubscribeFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "subscribe_failures_total",
			Help:      "Total number of watch connections that could not subscribe.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "rejected_total",
			Help:      "Watch connections refused before upgrade, by limit.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.ActiveBridges, m.MessagesRelayed, m.Terminations, m.BridgeDuration, m.DiscardedFrames, m.SubscribeFailure, m.Rejected)
	return m
}
