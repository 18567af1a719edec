package localexec

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Service is the local execution entry point for device adapters.
//
// One Service runs per process. It owns the device registry and the shared
// listener lifecycle; adapters join it with Register for as long as their
// device lives.
type Service struct {
	registry  *Registry
	lifecycle *Lifecycle
	handler   http.Handler

	identity       ProxyID
	host           string
	ports          Ports
	grace          time.Duration
	commandTimeout time.Duration
	observer       CommandObserver
	logger         Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIdentity overrides the process identity advertised in discovery replies.
func WithIdentity(id ProxyID) Option {
	return func(s *Service) { s.identity = id }
}

// WithHost restricts the listeners to one local address. The default binds
// all interfaces, which discovery broadcasts require.
func WithHost(host string) Option {
	return func(s *Service) { s.host = host }
}

// WithPorts overrides the well-known ports. Zero picks an ephemeral port.
func WithPorts(p Ports) Option {
	return func(s *Service) { s.ports = p }
}

// WithGracePeriod overrides how long listeners outlive the last registration.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Service) { s.grace = d }
}

// WithCommandTimeout cancels the context passed to each device command after
// d. Devices that ignore their context are not interrupted. Zero (the
// default) leaves the context to the requesting controller.
func WithCommandTimeout(d time.Duration) Option {
	return func(s *Service) { s.commandTimeout = d }
}

// WithCommandObserver registers a callback for every dispatched command.
func WithCommandObserver(fn CommandObserver) Option {
	return func(s *Service) { s.observer = fn }
}

// New creates a Service. No socket is bound until the first Register.
func New(opts ...Option) *Service {
	s := &Service{
		registry: NewRegistry(),
		identity: ProcessID(),
		ports:    DefaultPorts(),
		grace:    DefaultGracePeriod,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handler = newCommandHandler(s.registry, s.logger, s.observer, s.commandTimeout)
	s.lifecycle = NewLifecycle(s.startListeners, s.grace)
	s.lifecycle.SetLogger(s.logger)

	return s
}

// startListeners is the StartFunc of the service lifecycle.
func (s *Service) startListeners() (Listeners, error) {
	l, err := startListeners(listenerConfig{
		host:     s.host,
		ports:    s.ports,
		identity: s.identity,
		handler:  s.handler,
		logger:   s.logger,
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Register makes d reachable through the local protocol until ctx is done.
//
// It stamps d with local routing metadata (if d implements Stamper), adds
// it to the registry and attaches to the shared listeners. Register blocks
// for the lifetime of the registration; on return d has been removed from
// the registry and the listeners are released subject to the grace period.
//
// Returns:
//   - nil: ctx was cancelled
//   - ErrInvalidDevice: d is nil or has no id
//   - ErrStartFailed / ErrServiceFailed: the shared listeners could not run
func (s *Service) Register(ctx context.Context, d Device) error {
	if d == nil || d.ID() == "" {
		return ErrInvalidDevice
	}
	if ctx.Err() != nil {
		return nil
	}

	id := d.ID()
	if st, ok := d.(Stamper); ok {
		st.SetLocalExecution(Metadata{
			ProxyID:        s.identity.String(),
			OtherDeviceIDs: []string{id},
		})
	}

	s.registry.Add(d)

	sub, err := s.lifecycle.Attach()
	if err != nil {
		s.registry.Remove(d)
		return err
	}
	defer func() {
		s.registry.Remove(d)
		sub.Detach()
	}()

	s.logger.Info("device registered for local execution", "device_id", id)

	select {
	case <-ctx.Done():
		s.logger.Info("device left local execution", "device_id", id)
		return nil
	case <-sub.Done():
		err := sub.Err()
		s.logger.Warn("local execution stopped for device", "device_id", id, "error", err)
		return err
	}
}

// Identity returns the advertised process identity.
func (s *Service) Identity() ProxyID {
	return s.identity
}

// Ports returns the configured ports.
func (s *Service) Ports() Ports {
	return s.ports
}

// Devices returns the ids of the currently registered devices.
func (s *Service) Devices() []string {
	return s.registry.IDs()
}

// State returns the state of the shared listeners.
func (s *Service) State() State {
	return s.lifecycle.State()
}

// Addrs returns the bound discovery and command addresses, or nils when the
// listeners are not running.
func (s *Service) Addrs() (discovery, command net.Addr) {
	l, ok := s.lifecycle.Current().(*listeners)
	if !ok || l == nil {
		return nil, nil
	}
	return l.DiscoveryAddr(), l.CommandAddr()
}
