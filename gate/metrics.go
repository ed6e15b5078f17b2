package gate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshuasello/mycelium-iot/metric"
)

// networkMetrics holds Prometheus metrics for one gate network
type networkMetrics struct {
	cyclesTotal   prometheus.Counter
	cycleDuration prometheus.Histogram
	gateFailures  *prometheus.CounterVec
}

// newNetworkMetrics creates and registers network metrics. A nil registry
// returns nil metrics; every record method tolerates a nil receiver.
func newNetworkMetrics(registry *metric.MetricsRegistry, networkName string) (*networkMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &networkMetrics{
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mycelium",
			Subsystem:   "gatenetwork",
			Name:        "cycles_total",
			Help:        "Completed control cycles",
			ConstLabels: prometheus.Labels{"network": networkName},
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mycelium",
			Subsystem:   "gatenetwork",
			Name:        "cycle_duration_seconds",
			Help:        "Wall time of one control cycle",
			Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			ConstLabels: prometheus.Labels{"network": networkName},
		}),
		gateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mycelium",
			Subsystem:   "gatenetwork",
			Name:        "gate_failures_total",
			Help:        "Cycle-aborting gate failures",
			ConstLabels: prometheus.Labels{"network": networkName},
		}, []string{"gate"}),
	}

	serviceName := "gatenetwork_" + networkName
	if err := registry.RegisterCounter(serviceName, "cycles", m.cyclesTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(serviceName, "cycle_duration", m.cycleDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(serviceName, "gate_failures", m.gateFailures); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *networkMetrics) recordCycle(duration time.Duration) {
	if m == nil {
		return
	}
	m.cyclesTotal.Inc()
	m.cycleDuration.Observe(duration.Seconds())
}

func (m *networkMetrics) recordFailure(gateName string) {
	if m == nil {
		return
	}
	m.gateFailures.WithLabelValues(gateName).Inc()
}
