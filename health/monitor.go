package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Monitor holds the latest status per component. It is safe for the
// driver's concurrent workers.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates an empty health monitor
func NewMonitor() *Monitor {
	return &Monitor{statuses: make(map[string]Status)}
}

// Update records a component's latest status
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// MarkHealthy records a successful operation, clearing any fault state
func (m *Monitor) MarkHealthy(name string) {
	m.Update(name, Healthy(name, ""))
}

// MarkFault records a failed operation. The fault count accumulates until
// the next success.
func (m *Monitor) MarkFault(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Degraded(name, err.Error())
	if prev, ok := m.statuses[name]; ok {
		status.FaultCount = prev.FaultCount
	}
	status.FaultCount++
	m.statuses[name] = status
}

// Get returns a component's latest status
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, exists := m.statuses[name]
	return status, exists
}

// Snapshot returns all statuses ordered by component name
func (m *Monitor) Snapshot() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Component < statuses[j].Component
	})
	return statuses
}

// System returns the aggregate status under the given system name
func (m *Monitor) System(name string) Status {
	return Aggregate(name, m.Snapshot())
}

// Handler serves the aggregate as JSON. Unhealthy aggregates answer 503
// so plain HTTP checks work without parsing the body.
func (m *Monitor) Handler(system string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := m.System(system)

		w.Header().Set("Content-Type", "application/json")
		if status.Condition == ConditionUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
}
