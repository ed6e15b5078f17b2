package metric

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mycelium",
		Subsystem: "test",
		Name:      "events_total",
		Help:      "Test counter",
	})

	require.NoError(t, registry.RegisterCounter("driver", "events", counter))

	// Duplicate key is rejected
	err := registry.RegisterCounter("driver", "events", counter)
	assert.Error(t, err)

	assert.True(t, registry.Unregister("driver", "events"))
	assert.False(t, registry.Unregister("driver", "events"))
}

func TestRegisterDifferentServicesSameMetricName(t *testing.T) {
	registry := NewMetricsRegistry()

	a := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mycelium", Subsystem: "a", Name: "connections", Help: "x",
	})
	b := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mycelium", Subsystem: "b", Name: "connections", Help: "x",
	})

	assert.NoError(t, registry.RegisterGauge("a", "connections", a))
	assert.NoError(t, registry.RegisterGauge("b", "connections", b))
}

func TestMetricsServerServes(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mycelium", Subsystem: "driver", Name: "requests_total", Help: "x",
	})
	require.NoError(t, registry.RegisterCounter("driver", "requests", counter))
	counter.Inc()

	server := NewServer("127.0.0.1:0", "", registry, nil)
	require.NoError(t, server.Start())
	defer func() { _ = server.Stop(time.Second) }()

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "mycelium_driver_requests_total 1")

	health, err := http.Get("http://" + server.Addr() + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestMetricsServerDoubleStart(t *testing.T) {
	registry := NewMetricsRegistry()
	server := NewServer("127.0.0.1:0", "", registry, nil)
	require.NoError(t, server.Start())
	defer func() { _ = server.Stop(time.Second) }()

	assert.Error(t, server.Start())
}
