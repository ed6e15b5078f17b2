package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/joshuasello/mycelium-iot/errors"
	"github.com/joshuasello/mycelium-iot/wire"
)

// wsChannel frames payloads as WebSocket binary messages. Message
// boundaries come from the WebSocket protocol itself, so no length prefix
// is needed.
type wsChannel struct {
	conn   *websocket.Conn
	config Config
	closed atomic.Bool

	writeMu sync.Mutex
}

// DialWebSocket connects to a driver's WebSocket endpoint
// (e.g. "ws://host:port/channel").
func DialWebSocket(url string, config Config) (Channel, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, errors.WrapTransient(err, "transport", "DialWebSocket", "handshake")
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return newWSChannel(conn, config), nil
}

func newWSChannel(conn *websocket.Conn, config Config) *wsChannel {
	maxSize := config.MaxFrameSize
	if maxSize <= 0 {
		maxSize = wire.DefaultMaxFrameSize
	}
	conn.SetReadLimit(int64(maxSize))
	return &wsChannel{conn: conn, config: config}
}

// Send writes one payload as a binary message
func (c *wsChannel) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return errors.WrapTransient(errors.ErrChannelClosed, "wsChannel", "Send", "state check")
	}

	maxSize := c.config.MaxFrameSize
	if maxSize <= 0 {
		maxSize = wire.DefaultMaxFrameSize
	}
	if len(payload) > maxSize {
		return errors.WrapInvalid(
			fmt.Errorf("payload of %d bytes exceeds limit %d: %w",
				len(payload), maxSize, errors.ErrProtocol),
			"wsChannel", "Send", "size check")
	}

	if c.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return errors.WrapTransient(err, "wsChannel", "Send", "set deadline")
		}
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return c.mapWSError(err, "Send")
	}
	return nil
}

// Receive blocks until the next binary message arrives. Non-binary
// messages violate the protocol.
func (c *wsChannel) Receive() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, c.mapWSError(err, "Receive")
		}
		switch messageType {
		case websocket.BinaryMessage:
			return data, nil
		case websocket.TextMessage:
			return nil, errors.WrapInvalid(
				fmt.Errorf("unexpected text message: %w", errors.ErrProtocol),
				"wsChannel", "Receive", "message type check")
		default:
			// control frames are handled by gorilla; skip anything else
			continue
		}
	}
}

// Close tears down the WebSocket connection
func (c *wsChannel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	// Best-effort close handshake before dropping the TCP connection
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}

func (c *wsChannel) mapWSError(err error, op string) error {
	if c.closed.Load() || stderrors.Is(err, net.ErrClosed) {
		return errors.WrapTransient(errors.ErrChannelClosed, "wsChannel", op, "channel closed")
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		return errors.WrapTransient(errors.ErrConnectionLost, "wsChannel", op, "peer disconnected")
	}
	if stderrors.Is(err, websocket.ErrReadLimit) {
		return errors.WrapInvalid(
			fmt.Errorf("%v: %w", err, errors.ErrProtocol), "wsChannel", op, "size check")
	}
	return errors.WrapTransient(err, "wsChannel", op, "websocket io")
}

// wsListener serves a WebSocket endpoint and hands accepted connections to
// the driver server as channels.
type wsListener struct {
	server   *http.Server
	netLst   net.Listener
	config   Config
	pending  chan Channel
	done     chan struct{}
	closed   atomic.Bool
	upgrader websocket.Upgrader
}

// ListenWebSocket serves channels over WebSocket at the given HTTP path
func ListenWebSocket(address, path string, config Config) (Listener, error) {
	netLst, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.WrapTransient(err, "transport", "ListenWebSocket", "tcp bind")
	}

	l := &wsListener{
		netLst:  netLst,
		config:  config,
		pending: make(chan Channel),
		done:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, l.handleUpgrade)
	l.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		// Serve returns ErrServerClosed on shutdown; anything else means
		// the listener died and Accept should start failing.
		_ = l.server.Serve(netLst)
		l.Close()
	}()

	return l, nil
}

func (l *wsListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already wrote the HTTP error
	}

	ch := newWSChannel(conn, l.config)
	select {
	case l.pending <- ch:
	case <-l.done:
		_ = ch.Close()
	}
}

// Accept blocks until the next controller connects
func (l *wsListener) Accept() (Channel, error) {
	select {
	case ch := <-l.pending:
		return ch, nil
	case <-l.done:
		return nil, errors.ErrServerClosed
	}
}

// Close stops the HTTP server and pending accepts
func (l *wsListener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(l.done)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return l.server.Shutdown(ctx)
}

// Addr returns the bound address
func (l *wsListener) Addr() net.Addr {
	return l.netLst.Addr()
}
