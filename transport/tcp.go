package transport

import (
	stderrors "errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshuasello/mycelium-iot/errors"
	"github.com/joshuasello/mycelium-iot/wire"
)

// connChannel frames payloads over any net.Conn. It backs both the TCP
// transport and the in-process pipe.
type connChannel struct {
	conn   net.Conn
	config Config
	closed atomic.Bool

	writeMu sync.Mutex
	readMu  sync.Mutex
}

// Dial connects to a driver listening on a TCP address
func Dial(address string, config Config) (Channel, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, errors.WrapTransient(err, "transport", "Dial", "tcp connect")
	}
	return newConnChannel(conn, config), nil
}

// DialTimeout is Dial with a connect deadline
func DialTimeout(address string, config Config, timeout time.Duration) (Channel, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, errors.WrapTransient(err, "transport", "DialTimeout", "tcp connect")
	}
	return newConnChannel(conn, config), nil
}

func newConnChannel(conn net.Conn, config Config) *connChannel {
	return &connChannel{conn: conn, config: config}
}

// Send writes one framed payload
func (c *connChannel) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return errors.WrapTransient(errors.ErrChannelClosed, "connChannel", "Send", "state check")
	}

	if c.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return errors.WrapTransient(err, "connChannel", "Send", "set deadline")
		}
	}

	if err := wire.WriteFrame(c.conn, payload, c.config.MaxFrameSize); err != nil {
		return c.mapConnError(err, "Send")
	}
	return nil
}

// Receive blocks until the next payload arrives
func (c *connChannel) Receive() ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	payload, err := wire.ReadFrame(c.conn, c.config.MaxFrameSize)
	if err != nil {
		return nil, c.mapConnError(err, "Receive")
	}
	return payload, nil
}

// Close tears down the underlying connection
func (c *connChannel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

// mapConnError normalizes connection failures: local close becomes
// ErrChannelClosed, peer loss becomes ErrConnectionLost, and protocol
// violations pass through untouched so callers can report them.
func (c *connChannel) mapConnError(err error, op string) error {
	if stderrors.Is(err, errors.ErrProtocol) {
		return err
	}
	if c.closed.Load() || stderrors.Is(err, net.ErrClosed) {
		return errors.WrapTransient(errors.ErrChannelClosed, "connChannel", op, "channel closed")
	}
	if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
		return errors.WrapTransient(errors.ErrConnectionLost, "connChannel", op, "peer disconnected")
	}
	return errors.WrapTransient(err, "connChannel", op, "connection io")
}

// tcpListener adapts a net.Listener to the transport Listener interface
type tcpListener struct {
	listener net.Listener
	config   Config
	closed   atomic.Bool
}

// Listen binds a TCP listener for the driver server
func Listen(address string, config Config) (Listener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.WrapTransient(err, "transport", "Listen", "tcp bind")
	}
	return &tcpListener{listener: listener, config: config}, nil
}

// Accept blocks until the next controller connects
func (l *tcpListener) Accept() (Channel, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		if l.closed.Load() || stderrors.Is(err, net.ErrClosed) {
			return nil, errors.ErrServerClosed
		}
		return nil, errors.WrapTransient(err, "tcpListener", "Accept", "tcp accept")
	}
	return newConnChannel(conn, l.config), nil
}

// Close stops accepting connections
func (l *tcpListener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.listener.Close()
}

// Addr returns the bound address
func (l *tcpListener) Addr() net.Addr {
	return l.listener.Addr()
}
