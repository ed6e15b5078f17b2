// Package natsclient wraps the NATS connection used for driver telemetry.
// Publishing is fire-and-forget: the dispatch path must keep serving
// hardware commands whether or not a broker is reachable, so the client
// reconnects in the background forever and drops events while offline.
package natsclient

import (
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/joshuasello/mycelium-iot/errors"
)

// Config holds NATS connection settings
type Config struct {
	// URL is the NATS server address, e.g. "nats://localhost:4222"
	URL string

	// Name identifies this connection in NATS monitoring
	Name string

	// ReconnectWait paces background reconnect attempts
	ReconnectWait time.Duration
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "mycelium-driver",
		ReconnectWait: 2 * time.Second,
	}
}

// Validate checks configuration values
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "url check")
	}
	return nil
}

// Client is a thin connection wrapper safe for concurrent publishers
type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect establishes the NATS connection. The initial connect fails open:
// with RetryOnFailedConnect the client keeps trying in the background and
// Publish drops events until the broker appears.
func Connect(config Config, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(config.URL,
		nats.Name(config.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("Telemetry broker disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Telemetry broker reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Connect", "nats connect")
	}

	return &Client{conn: conn, logger: logger}, nil
}

// Publish sends one message; failures are logged, never returned, since
// telemetry must not disturb command dispatch
func (c *Client) Publish(subject string, data []byte) {
	if c == nil || c.conn == nil {
		return
	}
	if err := c.conn.Publish(subject, data); err != nil {
		c.logger.Debug("Telemetry publish failed", "subject", subject, "error", err)
	}
}

// Close drains the connection, flushing buffered messages
func (c *Client) Close() {
	if c == nil || c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("Failed to drain telemetry connection", "error", err)
	}
}
