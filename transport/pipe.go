package transport

import (
	"net"

	"github.com/joshuasello/mycelium-iot/errors"
)

// Pipe returns a connected in-process channel pair. The controller end can
// drive a driver server directly, which is how the dummy platform is
// exercised in tests without opening sockets.
func Pipe(config Config) (Channel, Channel) {
	c1, c2 := net.Pipe()
	return newConnChannel(c1, config), newConnChannel(c2, config)
}

// PipeListener hands out the server side of in-process pipes. Connect
// returns the controller side of a new pair.
type PipeListener struct {
	config  Config
	pending chan Channel
	done    chan struct{}
}

// NewPipeListener creates an in-process listener
func NewPipeListener(config Config) *PipeListener {
	return &PipeListener{
		config:  config,
		pending: make(chan Channel),
		done:    make(chan struct{}),
	}
}

// Connect creates a new channel pair and returns the controller end once
// the server has accepted the other end.
func (l *PipeListener) Connect() (Channel, error) {
	controller, driver := Pipe(l.config)
	select {
	case l.pending <- driver:
		return controller, nil
	case <-l.done:
		_ = controller.Close()
		_ = driver.Close()
		return nil, errors.ErrServerClosed
	}
}

// Accept blocks until the next Connect
func (l *PipeListener) Accept() (Channel, error) {
	select {
	case ch := <-l.pending:
		return ch, nil
	case <-l.done:
		return nil, errors.ErrServerClosed
	}
}

// Close stops accepting connections
func (l *PipeListener) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}

// Addr returns a placeholder address
func (l *PipeListener) Addr() net.Addr {
	return pipeAddr{}
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }
