// Package transport provides the channel abstraction between one controller
// and one driver: a bidirectional, ordered, reliable stream of framed
// payloads. Implementations cover raw TCP, WebSocket, and an in-process
// pipe so the same controller code runs against a remote driver or a local
// one in tests.
package transport

import (
	"net"
	"time"
)

// Channel is one controller-driver connection. Send and Receive are each
// safe for one concurrent caller; the owning proxy client and server
// connection loop serialize their own use.
type Channel interface {
	// Send writes one framed payload
	Send(payload []byte) error

	// Receive blocks until the next payload arrives. It returns
	// errors.ErrConnectionLost when the peer goes away and
	// errors.ErrChannelClosed after a local Close.
	Receive() ([]byte, error)

	// Close tears down the channel. In-flight Receives are unblocked.
	Close() error
}

// Listener accepts incoming channels on the driver side
type Listener interface {
	// Accept blocks until the next controller connects
	Accept() (Channel, error)

	// Close stops accepting; returns errors.ErrServerClosed from
	// pending and future Accepts
	Close() error

	// Addr returns the bound address
	Addr() net.Addr
}

// Config tunes channel behavior
type Config struct {
	// MaxFrameSize bounds a single payload; zero means wire.DefaultMaxFrameSize
	MaxFrameSize int

	// WriteTimeout bounds one Send; zero disables the deadline
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for control traffic
func DefaultConfig() Config {
	return Config{
		MaxFrameSize: 0, // wire default
		WriteTimeout: 10 * time.Second,
	}
}
