package localexec

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// Well-known ports of the local protocol.
const (
	// DiscoveryPort receives controller probes.
	DiscoveryPort = 6988

	// DiscoveryReplyPort is where replies are sent on the prober's address.
	DiscoveryReplyPort = 6989

	// CommandPort serves the HTTP command endpoint.
	CommandPort = 6987
)

// HTTP server limits for the command endpoint.
const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second

	// gracefulShutdownTimeout is the maximum time to wait for in-flight
	// commands when the listeners are released.
	gracefulShutdownTimeout = 5 * time.Second
)

// Ports holds the three port numbers of the local protocol.
type Ports struct {
	Discovery int
	Reply     int
	Command   int
}

// DefaultPorts returns the well-known ports controllers expect.
func DefaultPorts() Ports {
	return Ports{
		Discovery: DiscoveryPort,
		Reply:     DiscoveryReplyPort,
		Command:   CommandPort,
	}
}

// Listeners is a running pair of discovery socket and command listener.
type Listeners interface {
	// Done is closed once both listeners have stopped.
	Done() <-chan struct{}

	// Err reports why the listeners stopped. Valid after Done is closed.
	Err() error

	// Close stops both listeners and waits for them to exit.
	Close() error
}

// StartFunc binds and starts a new Listeners pair.
type StartFunc func() (Listeners, error)

// listenerConfig carries what startListeners needs.
type listenerConfig struct {
	host     string
	ports    Ports
	identity ProxyID
	handler  http.Handler
	logger   Logger
}

// listeners is the production Listeners: a UDP discovery responder and an
// HTTP command server supervised as one errgroup. If either one fails the
// other is shut down too.
type listeners struct {
	udp    net.PacketConn
	tcp    net.Listener
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// startListeners binds both sockets and starts serving.
//
// Returns:
//   - *listeners: running listeners
//   - error: if either port cannot be bound (nothing is left bound)
func startListeners(cfg listenerConfig) (*listeners, error) {
	udpAddr := net.JoinHostPort(cfg.host, strconv.Itoa(cfg.ports.Discovery))
	pc, err := net.ListenPacket("udp4", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("binding discovery socket %s: %w", udpAddr, err)
	}

	tcpAddr := net.JoinHostPort(cfg.host, strconv.Itoa(cfg.ports.Command))
	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		pc.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("binding command listener %s: %w", tcpAddr, err)
	}

	// Advertise the port actually bound.
	commandPort := cfg.ports.Command
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		commandPort = addr.Port
	}

	responder := NewResponder(pc, cfg.identity, commandPort, cfg.ports.Reply, cfg.logger)
	server := &http.Server{
		Handler:           cfg.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(responder.Serve)
	g.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving command endpoint: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		pc.Close() //nolint:errcheck // Read loop exits on net.ErrClosed

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close() //nolint:errcheck // Forced close after shutdown timeout
		}
		return nil
	})

	l := &listeners{
		udp:    pc,
		tcp:    ln,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		l.err = g.Wait()
		cancel()
		close(l.done)
	}()

	cfg.logger.Info("local execution listeners bound",
		"discovery", pc.LocalAddr().String(),
		"command", ln.Addr().String(),
	)

	return l, nil
}

func (l *listeners) Done() <-chan struct{} { return l.done }

func (l *listeners) Err() error { return l.err }

func (l *listeners) Close() error {
	l.cancel()
	<-l.done
	return l.err
}

// DiscoveryAddr returns the bound discovery socket address.
func (l *listeners) DiscoveryAddr() net.Addr { return l.udp.LocalAddr() }

// CommandAddr returns the bound command listener address.
func (l *listeners) CommandAddr() net.Addr { return l.tcp.Addr() }
