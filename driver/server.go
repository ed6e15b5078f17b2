// Package driver implements the device-side server. It accepts controller
// connections, decodes protocol requests, and dispatches them to registered
// components. Operations on the same component are serialized through a
// per-component worker, so component implementations never see concurrent
// calls; operations on different components run in parallel and their
// responses may interleave on the wire.
package driver

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/errors"
	"github.com/joshuasello/mycelium-iot/health"
	"github.com/joshuasello/mycelium-iot/metric"
	"github.com/joshuasello/mycelium-iot/transport"
	"github.com/joshuasello/mycelium-iot/wire"
)

// Config holds driver server settings
type Config struct {
	// QueueDepth is the per-component dispatch queue length. A full queue
	// blocks the offending connection's read loop, which is the intended
	// backpressure.
	QueueDepth int

	// ShutdownTimeout bounds how long Stop waits for in-flight operations
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() Config {
	return Config{
		QueueDepth:      16,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate checks configuration values
func (c Config) Validate() error {
	if c.QueueDepth <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("queue depth must be positive, got %d: %w",
				c.QueueDepth, errors.ErrInvalidConfig),
			"Config", "Validate", "queue depth check")
	}
	return nil
}

// job is one dispatched operation awaiting its component worker
type job struct {
	ctx  context.Context
	req  wire.Request
	conn *serverConn
}

// componentWorker serializes all operations on one component
type componentWorker struct {
	id   string
	comp component.Component
	jobs chan job
}

// serverConn is one accepted controller connection
type serverConn struct {
	id      string
	channel transport.Channel
	closed  atomic.Bool
}

// send encodes and writes one response; the channel serializes writers, so
// workers for different components can respond concurrently
func (sc *serverConn) send(resp wire.Response) error {
	data, err := wire.EncodeResponse(resp)
	if err != nil {
		return err
	}
	return sc.channel.Send(data)
}

func (sc *serverConn) close() {
	if sc.closed.CompareAndSwap(false, true) {
		_ = sc.channel.Close()
	}
}

// Server exposes registered components to controllers over the wire
// protocol. Register every component before calling Serve.
type Server struct {
	config    Config
	logger    *slog.Logger
	metrics   *serverMetrics
	telemetry *Telemetry
	monitor   *health.Monitor

	mu      sync.Mutex
	workers map[string]*componentWorker
	conns   map[string]*serverConn
	started bool

	workerWg sync.WaitGroup
	connWg   sync.WaitGroup
}

// Option customizes a Server
type Option func(*Server)

// WithTelemetry attaches a telemetry publisher for connection and fault
// events
func WithTelemetry(t *Telemetry) Option {
	return func(s *Server) { s.telemetry = t }
}

// WithHealth records per-component fault state on the given monitor
func WithHealth(monitor *health.Monitor) Option {
	return func(s *Server) { s.monitor = monitor }
}

// WithMetrics registers server metrics on the given registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Server) {
		metrics, err := newServerMetrics(registry)
		if err != nil {
			s.logger.Error("Failed to initialize driver metrics", "error", err)
			return
		}
		s.metrics = metrics
	}
}

// NewServer creates a driver server. The logger may be nil.
func NewServer(config Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  config,
		logger:  logger,
		workers: make(map[string]*componentWorker),
		conns:   make(map[string]*serverConn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterComponent exposes a component under the given id. Registration
// is rejected once the server is serving.
func (s *Server) RegisterComponent(id string, comp component.Component) error {
	if id == "" {
		return errors.WrapInvalid(
			fmt.Errorf("component id must not be empty: %w", errors.ErrInvalidConfig),
			"Server", "RegisterComponent", "id check")
	}
	if err := component.ContractOf(comp).Validate(); err != nil {
		return errors.Wrap(err, "Server", "RegisterComponent", "contract validation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.WrapInvalid(
			fmt.Errorf("cannot register %q on a serving server: %w", id, errors.ErrAlreadyStarted),
			"Server", "RegisterComponent", "state check")
	}
	if _, exists := s.workers[id]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("duplicate component id %q: %w", id, errors.ErrInvalidConfig),
			"Server", "RegisterComponent", "id check")
	}

	s.workers[id] = &componentWorker{
		id:   id,
		comp: comp,
		jobs: make(chan job, s.config.QueueDepth),
	}
	return nil
}

// ComponentIDs returns the registered component ids in sorted order
func (s *Server) ComponentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.componentIDs()
}

func (s *Server) componentIDs() []string {
	ids := make([]string, 0, len(s.workers))
	for id := range s.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Serve accepts controller connections until the context is cancelled or
// the listener fails. It blocks; run it in a goroutine if the caller has
// other work.
func (s *Server) Serve(ctx context.Context, listener transport.Listener) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Serve", "state check")
	}
	s.started = true
	for _, w := range s.workers {
		s.markHealthy(w.id)
		s.workerWg.Add(1)
		go s.runWorker(w)
	}
	s.mu.Unlock()

	s.logger.Info("Driver server serving",
		"address", listener.Addr().String(), "components", len(s.workers))

	// Closing the listener is what unblocks Accept on cancellation
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	var acceptErr error
	for {
		channel, err := listener.Accept()
		if err != nil {
			if stderrors.Is(err, errors.ErrServerClosed) || ctx.Err() != nil {
				break
			}
			acceptErr = err
			break
		}

		conn := &serverConn{id: uuid.NewString(), channel: channel}
		s.mu.Lock()
		s.conns[conn.id] = conn
		s.mu.Unlock()

		s.connWg.Add(1)
		go s.serveConn(ctx, conn)
	}

	s.shutdown()
	if acceptErr != nil {
		return errors.Wrap(acceptErr, "Server", "Serve", "accepting connections")
	}
	return nil
}

// shutdown closes all connections and drains workers
func (s *Server) shutdown() {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}

	done := make(chan struct{})
	go func() {
		s.connWg.Wait()
		s.mu.Lock()
		for _, w := range s.workers {
			close(w.jobs)
		}
		s.mu.Unlock()
		s.workerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.config.ShutdownTimeout):
		s.logger.Warn("Shutdown timed out waiting for in-flight operations",
			"timeout", s.config.ShutdownTimeout)
	}
	s.logger.Info("Driver server stopped")
}

// serveConn reads requests off one connection until it drops
func (s *Server) serveConn(ctx context.Context, conn *serverConn) {
	defer s.connWg.Done()
	defer func() {
		conn.close()
		s.mu.Lock()
		delete(s.conns, conn.id)
		s.mu.Unlock()
		s.metrics.connClosed()
		s.telemetry.connectionClosed(conn.id)
		s.logger.Info("Controller disconnected", "connection_id", conn.id)
	}()

	s.metrics.connOpened()
	s.telemetry.connectionOpened(conn.id)
	s.logger.Info("Controller connected", "connection_id", conn.id)

	for {
		data, err := conn.channel.Receive()
		if err != nil {
			if stderrors.Is(err, errors.ErrProtocol) {
				// Oversized or malformed frame; tell the peer, then cut it off
				_ = conn.send(wire.ErrorResponse(0, err))
			}
			return
		}

		req, err := wire.DecodeRequest(data)
		if err != nil {
			// Undecodable payloads poison correlation; respond and close
			s.logger.Warn("Malformed request frame; closing connection",
				"connection_id", conn.id, "error", err)
			_ = conn.send(wire.ErrorResponse(0, err))
			s.metrics.request("malformed", false)
			return
		}

		if err := req.Validate(); err != nil {
			// Structurally bad but decodable; the connection stays usable
			s.respond(conn, wire.ErrorResponse(req.CorrelationID, err), string(req.Op), false)
			continue
		}

		s.dispatch(ctx, conn, req)
	}
}

// dispatch routes one validated request. List is answered inline; component
// operations go through the component's worker queue.
func (s *Server) dispatch(ctx context.Context, conn *serverConn, req wire.Request) {
	if req.Op == wire.OpList {
		s.mu.Lock()
		ids := s.componentIDs()
		s.mu.Unlock()
		s.respond(conn, wire.ListResponse(req.CorrelationID, ids), string(req.Op), true)
		return
	}

	s.mu.Lock()
	worker, ok := s.workers[req.ComponentID]
	s.mu.Unlock()
	if !ok {
		err := fmt.Errorf("component %q: %w", req.ComponentID, errors.ErrUnknownComponent)
		s.respond(conn, wire.ErrorResponse(req.CorrelationID, err), string(req.Op), false)
		return
	}

	select {
	case worker.jobs <- job{ctx: ctx, req: req, conn: conn}:
	case <-ctx.Done():
		s.respond(conn, wire.ErrorResponse(req.CorrelationID, ctx.Err()), string(req.Op), false)
	}
}

// runWorker executes one component's operations in arrival order
func (s *Server) runWorker(w *componentWorker) {
	defer s.workerWg.Done()
	for j := range w.jobs {
		resp := s.execute(j.ctx, w, j.req)
		s.respond(j.conn, resp, string(j.req.Op), resp.Status == wire.StatusOK)
	}
}

// execute runs one operation against the worker's component
func (s *Server) execute(ctx context.Context, w *componentWorker, req wire.Request) wire.Response {
	contract := component.ContractOf(w.comp)

	switch req.Op {
	case wire.OpWrite:
		if err := contract.CheckWrite(req.Field, *req.Value); err != nil {
			return wire.ErrorResponse(req.CorrelationID, err)
		}
		start := time.Now()
		if err := w.comp.Write(ctx, req.Field, *req.Value); err != nil {
			s.telemetry.commandFailed(w.id, req.Field, err)
			s.markFault(w.id, err)
			return wire.ErrorResponse(req.CorrelationID, err)
		}
		s.metrics.operation(w.id, "write", time.Since(start))
		s.markHealthy(w.id)
		return wire.OKResponse(req.CorrelationID)

	case wire.OpRead:
		if _, err := contract.CheckRead(req.Field); err != nil {
			return wire.ErrorResponse(req.CorrelationID, err)
		}
		start := time.Now()
		value, err := w.comp.Read(ctx, req.Field)
		if err != nil {
			s.telemetry.commandFailed(w.id, req.Field, err)
			s.markFault(w.id, err)
			return wire.ErrorResponse(req.CorrelationID, err)
		}
		s.metrics.operation(w.id, "read", time.Since(start))
		s.markHealthy(w.id)
		return wire.ValueResponse(req.CorrelationID, value)

	case wire.OpDescribe:
		return wire.ContractResponse(req.CorrelationID, contract)

	default:
		return wire.ErrorResponse(req.CorrelationID,
			fmt.Errorf("unhandled op %q: %w", req.Op, errors.ErrProtocol))
	}
}

func (s *Server) markHealthy(componentID string) {
	if s.monitor != nil {
		s.monitor.MarkHealthy(componentID)
	}
}

func (s *Server) markFault(componentID string, err error) {
	if s.monitor != nil {
		s.monitor.MarkFault(componentID, err)
	}
}

// respond writes a response and records the outcome
func (s *Server) respond(conn *serverConn, resp wire.Response, op string, ok bool) {
	s.metrics.request(op, ok)
	if err := conn.send(resp); err != nil {
		s.logger.Debug("Failed to send response; connection gone",
			"connection_id", conn.id, "error", err)
		conn.close()
	}
}
