package metric

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshuasello/mycelium-iot/errors"
)

// Server serves the /metrics and /healthz endpoints for one process
type Server struct {
	address  string
	path     string
	registry *MetricsRegistry
	logger   *slog.Logger

	mu      sync.Mutex // protects server field
	server  *http.Server
	lst     net.Listener
	healthz http.Handler
}

// NewServer creates a metrics server bound to address (e.g. ":9090")
func NewServer(address, path string, registry *MetricsRegistry, logger *slog.Logger) *Server {
	if path == "" {
		path = "/metrics"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:  address,
		path:     path,
		registry: registry,
		logger:   logger,
	}
}

// HealthHandler replaces the default static /healthz responder, typically
// with a health.Monitor handler. Call before Start.
func (s *Server) HealthHandler(h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthz = h
}

// Start begins serving metrics in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start", "state check")
	}
	if s.registry == nil {
		return errors.WrapFatal(
			fmt.Errorf("nil registry"), "Server", "Start", "metrics registry not provided")
	}

	lst, err := net.Listen("tcp", s.address)
	if err != nil {
		return errors.WrapTransient(err, "Server", "Start", "bind metrics address")
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{},
	))
	if s.healthz != nil {
		mux.Handle("/healthz", s.healthz)
	} else {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
	}

	s.lst = lst
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.server.Serve(lst); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server failed", "error", err, "address", s.address)
		}
	}()

	s.logger.Info("Metrics server started", "address", lst.Addr().String(), "path", s.path)
	return nil
}

// Addr returns the bound address after Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lst == nil {
		return s.address
	}
	return s.lst.Addr().String()
}

// Stop shuts the server down gracefully
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.server = nil
	s.lst = nil
	return err
}
