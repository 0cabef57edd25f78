package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/homesync/node-agent/internal/agent"
	"github.com/homesync/node-agent/internal/infrastructure/config"
	"github.com/homesync/node-agent/internal/infrastructure/logging"
	"github.com/homesync/node-agent/internal/journal"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// Server timeouts. The status API serves small documents only.
const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
)

// StatusProvider exposes the agent's latest snapshot.
type StatusProvider interface {
	Status() *agent.Status
}

// JournalReader reads the local diagnostics journal.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	RelayHistory(ctx context.Context, limit int) ([]journal.RelayEntry, error)
}

// HealthChecker is an infrastructure connection /healthz reports on.
// Implemented by the MQTT session, the database and the InfluxDB archive.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config  config.StatusConfig
	Logger  *logging.Logger
	Status  StatusProvider
	Journal JournalReader            // optional
	Metrics http.Handler             // optional
	Checks  map[string]HealthChecker // optional, keyed by component name
	Version string
}

// Server is the local status HTTP server.
//
// It is created with New() and started with Start().
type Server struct {
	cfg     config.StatusConfig
	logger  *logging.Logger
	status  StatusProvider
	journal JournalReader
	metrics http.Handler
	checks  map[string]HealthChecker
	version string

	server   *http.Server
	listener net.Listener
}

// New creates a new status server with the given dependencies.
//
// Parameters:
//   - deps: Required dependencies (logger, status provider)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Status == nil {
		return nil, fmt.Errorf("status provider is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		status:  deps.Status,
		journal: deps.Journal,
		metrics: deps.Metrics,
		checks:  deps.Checks,
		version: deps.Version,
	}, nil
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listen address and serves in a background goroutine.
//
// Binding happens before Start returns, so a port conflict is reported to
// the caller rather than logged later.
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding status server on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	s.logger.Info("status server listening", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server.
//
// It waits up to 5 seconds for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}
