package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/nora-local/internal/audit"
	"github.com/nerrad567/nora-local/internal/infrastructure/config"
	"github.com/nerrad567/nora-local/internal/infrastructure/logging"
	"github.com/nerrad567/nora-local/internal/localexec"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// LocalExecution is the status surface of the local execution service.
// *localexec.Service satisfies it.
type LocalExecution interface {
	Identity() localexec.ProxyID
	State() localexec.State
	Devices() []string
	Ports() localexec.Ports
	Addrs() (discovery, command net.Addr)
}

// MQTTStatus reports the state of the MQTT client.
// *mqtt.Client satisfies it.
type MQTTStatus interface {
	IsConnected() bool
	SubscriptionCount() int
}

// StatsProvider exposes connection pool statistics.
// *database.DB satisfies it.
type StatsProvider interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	Logger *logging.Logger

	// LocalExec is nil when local execution is disabled.
	LocalExec LocalExecution

	// Optional collaborators.
	Audit audit.Repository
	MQTT  MQTTStatus
	DB    StatsProvider

	Version string
}

// Server is the admin HTTP server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	localExec LocalExecution
	auditRepo audit.Repository
	mqtt      MQTTStatus
	db        StatsProvider
	version   string
	startTime time.Time

	server   *http.Server
	listener net.Listener
}

// New creates a new API server. It is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		localExec: deps.LocalExec,
		auditRepo: deps.Audit,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine. Bind
// errors are returned; later serve errors are logged.
func (s *Server) Start(_ context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
