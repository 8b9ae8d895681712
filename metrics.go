package rupy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the bridge's Prometheus collectors.
//
// Metrics, with the default namespace:
//   - rupy_handles_live - handles currently registered
//   - rupy_handle_increfs_total - guest IncRefs issued for handles
//   - rupy_handle_decrefs_total - guest DecRefs issued for handles
//   - rupy_guest_errors_total{kind} - guest exceptions surfaced to the host
//   - rupy_conversions_total{direction} - ToForeign / ToNative calls
type metrics struct {
	live        prometheus.Gauge
	increfs     prometheus.Counter
	decrefs     prometheus.Counter
	guestErrors *prometheus.CounterVec
	conversions *prometheus.CounterVec
}

// newMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func newMetrics(reg prometheus.Registerer, ns string) *metrics {
	f := promauto.With(reg)
	return &metrics{
		live: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "handles_live",
			Help:      "Number of guest handles currently registered",
		}),
		increfs: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "handle_increfs_total",
			Help:      "Total number of guest IncRefs issued for handles",
		}),
		decrefs: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "handle_decrefs_total",
			Help:      "Total number of guest DecRefs issued for handles",
		}),
		guestErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "guest_errors_total",
				Help:      "Total number of guest exceptions surfaced to the host",
			},
			[]string{"kind"},
		),
		conversions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "conversions_total",
				Help:      "Total number of value conversions across the bridge",
			},
			[]string{"direction"}, // "to_foreign" or "to_native"
		),
	}
}
