package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dray-io/objaccess/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Server exposes a gatherer on GET /metrics for the lifetime of an objctl
// invocation.
type Server struct {
	addr     string
	gatherer prometheus.Gatherer

	mu     sync.RWMutex
	ln     net.Listener
	server *http.Server
}

// NewServer serves the default Prometheus gatherer on addr.
func NewServer(addr string) *Server {
	return NewServerWithRegistry(addr, prometheus.DefaultGatherer)
}

// NewServerWithRegistry serves gatherer on addr. objctl passes the registry
// its StoreMetrics were registered with.
func NewServerWithRegistry(addr string, gatherer prometheus.Gatherer) *Server {
	return &Server{addr: addr, gatherer: gatherer}
}

// Handler renders the gatherer in the Prometheus exposition format.
func (s *Server) Handler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}

// Start binds addr and serves in the background. A ":0" port is resolved
// by Addr once Start returns.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())
	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.ln, s.server = ln, srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Global().Warnf("metrics server stopped", map[string]any{
				"addr":  ln.Addr().String(),
				"error": err.Error(),
			})
		}
	}()
	return nil
}

// Addr is the bound address after Start, else the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Close stops the server, waiting up to five seconds for in-flight scrapes.
// Closing a server that never started is a no-op.
func (s *Server) Close() error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
