package driver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshuasello/mycelium-iot/metric"
)

// serverMetrics holds Prometheus metrics for one driver server. All record
// methods tolerate a nil receiver so a server without a registry pays
// nothing.
type serverMetrics struct {
	activeConns       prometheus.Gauge
	requestsTotal     *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

func newServerMetrics(registry *metric.MetricsRegistry) (*serverMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &serverMetrics{
		activeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mycelium",
			Subsystem: "driver",
			Name:      "active_connections",
			Help:      "Currently connected controllers",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mycelium",
			Subsystem: "driver",
			Name:      "requests_total",
			Help:      "Protocol requests by operation and outcome",
		}, []string{"op", "status"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mycelium",
			Subsystem: "driver",
			Name:      "operation_duration_seconds",
			Help:      "Component operation execution time",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"component", "op"}),
	}

	if err := registry.RegisterGauge("driver", "active_connections", m.activeConns); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("driver", "requests", m.requestsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("driver", "operation_duration", m.operationDuration); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *serverMetrics) connOpened() {
	if m == nil {
		return
	}
	m.activeConns.Inc()
}

func (m *serverMetrics) connClosed() {
	if m == nil {
		return
	}
	m.activeConns.Dec()
}

func (m *serverMetrics) request(op string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.requestsTotal.WithLabelValues(op, status).Inc()
}

func (m *serverMetrics) operation(componentID, op string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(componentID, op).Observe(duration.Seconds())
}
