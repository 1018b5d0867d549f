package metrics

import "github.com/prometheus/client_golang/prometheus"

// Update results.
const (
	ResultOK               = "ok"
	ResultNotFound         = "not_found"
	ResultStoreUnavailable = "store_unavailable"
	ResultPublishFailed    = "publish_failed"
)

type CoordinatorMetrics struct {
	UpdatesTotal    *prometheus.CounterVec
	UpdateDuration  prometheus.Histogram
	PublishDuration prometheus.Histogram
}

func NewCoordinatorMetrics(reg prometheus.Registerer) *CoordinatorMetrics {
	m := &CoordinatorMetrics{
		UpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "board_updates_total",
			Help:      "Total number of board updates, by result.",
		}, []string{"result"}),
		UpdateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "board_update_duration_seconds",
			Help:      "Duration of board updates including publication, in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "board_publish_duration_seconds",
			Help:      "Duration of publishing a board update to the broker, in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1, 2},
		}),
	}

	reg.MustRegister(m.UpdatesTotal, m.UpdateDuration, m.PublishDuration)
	return m
}
