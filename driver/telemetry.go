package driver

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/joshuasello/mycelium-iot/natsclient"
)

// Telemetry publishes driver events over NATS so fleet tooling can watch
// connections and hardware faults without polling the metrics endpoint.
// Events go out under subjectPrefix + "." + event name. A nil *Telemetry
// is a no-op.
type Telemetry struct {
	client  *natsclient.Client
	subject string
	logger  *slog.Logger
}

// telemetryEvent is the published payload
type telemetryEvent struct {
	Event        string    `json:"event"`
	ConnectionID string    `json:"connection_id,omitempty"`
	ComponentID  string    `json:"component_id,omitempty"`
	Field        string    `json:"field,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewTelemetry wraps an established NATS client. The telemetry takes over
// the client's lifetime; Close drains it.
func NewTelemetry(client *natsclient.Client, subjectPrefix string, logger *slog.Logger) *Telemetry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telemetry{client: client, subject: subjectPrefix, logger: logger}
}

// Close drains the underlying connection, flushing buffered events
func (t *Telemetry) Close() {
	if t == nil {
		return
	}
	t.client.Close()
}

func (t *Telemetry) publish(event telemetryEvent) {
	if t == nil {
		return
	}
	event.Timestamp = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		t.logger.Warn("Failed to marshal telemetry event", "event", event.Event, "error", err)
		return
	}
	t.client.Publish(t.subject+"."+event.Event, data)
}

func (t *Telemetry) connectionOpened(connectionID string) {
	t.publish(telemetryEvent{Event: "connection_opened", ConnectionID: connectionID})
}

func (t *Telemetry) connectionClosed(connectionID string) {
	t.publish(telemetryEvent{Event: "connection_closed", ConnectionID: connectionID})
}

func (t *Telemetry) commandFailed(componentID, field string, err error) {
	t.publish(telemetryEvent{
		Event:       "command_failed",
		ComponentID: componentID,
		Field:       field,
		Error:       err.Error(),
	})
}
