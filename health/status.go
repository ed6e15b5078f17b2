// Package health tracks the observed condition of a driver's components.
// The driver marks a component degraded when a command against it faults
// and healthy again on the next success; fleet tooling reads the aggregate
// over HTTP to decide whether an agent needs attention.
package health

import "time"

// Condition is the reported health state
type Condition string

// Health conditions
const (
	// ConditionHealthy means the last operation succeeded
	ConditionHealthy Condition = "healthy"
	// ConditionDegraded means operations fault but the component still responds
	ConditionDegraded Condition = "degraded"
	// ConditionUnhealthy means the component cannot serve operations at all
	ConditionUnhealthy Condition = "unhealthy"
)

// Status is one component's health snapshot
type Status struct {
	Component   string    `json:"component"`
	Condition   Condition `json:"condition"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	FaultCount  int       `json:"fault_count,omitempty"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// Healthy reports whether the status condition is healthy
func (s Status) Healthy() bool { return s.Condition == ConditionHealthy }

// Healthy creates a healthy status snapshot
func Healthy(component, message string) Status {
	return Status{
		Component: component,
		Condition: ConditionHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Degraded creates a degraded status snapshot
func Degraded(component, message string) Status {
	return Status{
		Component: component,
		Condition: ConditionDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Unhealthy creates an unhealthy status snapshot
func Unhealthy(component, message string) Status {
	return Status{
		Component: component,
		Condition: ConditionUnhealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate folds sub-statuses into one system status: any unhealthy
// member makes the system unhealthy, otherwise any degraded member makes
// it degraded.
func Aggregate(system string, subStatuses []Status) Status {
	status := Healthy(system, "all components healthy")
	for _, sub := range subStatuses {
		switch sub.Condition {
		case ConditionUnhealthy:
			status.Condition = ConditionUnhealthy
			status.Message = "one or more components are unhealthy"
		case ConditionDegraded:
			if status.Condition == ConditionHealthy {
				status.Condition = ConditionDegraded
				status.Message = "one or more components are degraded"
			}
		}
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)
	return status
}
