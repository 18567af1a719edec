package localexec

import (
	"fmt"
	"sync"
	"time"
)

// State is the activation state of the shared listeners.
type State string

const (
	StateStopped       State = "stopped"
	StateStarting      State = "starting"
	StateRunning       State = "running"
	StateStoppingGrace State = "stopping_grace"
)

// DefaultGracePeriod is how long the listeners outlive their last registration.
const DefaultGracePeriod = time.Second

// Lifecycle shares one Listeners pair between any number of subscribers.
//
// The first Attach starts the listeners; concurrent attaches during start-up
// wait for it and share the outcome. When the last subscriber detaches the
// listeners stay up for the grace period and are closed only if nobody has
// attached in the meantime. A start-up or runtime failure is delivered to
// every subscriber of that activation.
//
// All methods are safe for concurrent use.
type Lifecycle struct {
	start  StartFunc
	grace  time.Duration
	logger Logger

	mu       sync.Mutex
	state    State
	current  *activation
	timer    *time.Timer
	graceGen uint64        // bumped to invalidate a pending teardown timer
	stopping chan struct{} // non-nil while released listeners are closing
}

// activation is one start of the listeners, shared by its subscribers.
type activation struct {
	refs      int
	listeners Listeners
	ready     chan struct{} // closed when start-up finished (either way)
	done      chan struct{} // closed when the listeners are gone
	err       error
	closing   bool
}

// Subscription is one attached user of the shared listeners.
type Subscription struct {
	l    *Lifecycle
	act  *activation
	once sync.Once
}

// NewLifecycle creates a stopped lifecycle around start.
func NewLifecycle(start StartFunc, grace time.Duration) *Lifecycle {
	return &Lifecycle{
		start:  start,
		grace:  grace,
		logger: noopLogger{},
		state:  StateStopped,
	}
}

// SetLogger sets the logger for the lifecycle.
func (l *Lifecycle) SetLogger(logger Logger) {
	l.logger = logger
}

// State returns the current activation state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Current returns the running listeners, or nil when stopped or starting.
func (l *Lifecycle) Current() Listeners {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil
	}
	return l.current.listeners
}

// Attach joins the shared listeners, starting them if necessary.
//
// Returns:
//   - *Subscription: handle to observe failures and to detach
//   - error: ErrStartFailed if the listeners could not be started
func (l *Lifecycle) Attach() (*Subscription, error) {
	l.mu.Lock()

	// Never bind while a previous activation is still releasing its ports.
	for l.current == nil && l.stopping != nil {
		stopping := l.stopping
		l.mu.Unlock()
		<-stopping
		l.mu.Lock()
	}

	act := l.current
	if act == nil {
		act = &activation{
			refs:  1,
			ready: make(chan struct{}),
			done:  make(chan struct{}),
		}
		l.current = act
		l.state = StateStarting
		l.mu.Unlock()
		return l.activate(act)
	}

	act.refs++
	if l.state == StateStoppingGrace {
		l.cancelGraceLocked()
		l.state = StateRunning
		l.logger.Debug("listener teardown cancelled")
	}
	l.mu.Unlock()

	<-act.ready

	l.mu.Lock()
	err := act.err
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &Subscription{l: l, act: act}, nil
}

// activate runs the start function for a fresh activation.
func (l *Lifecycle) activate(act *activation) (*Subscription, error) {
	listeners, err := l.start()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		act.err = fmt.Errorf("%w: %w", ErrStartFailed, err)
		l.current = nil
		l.state = StateStopped
		close(act.ready)
		close(act.done)
		l.logger.Error("local execution listeners failed to start", "error", err)
		return nil, act.err
	}

	act.listeners = listeners
	l.state = StateRunning
	close(act.ready)
	go l.watch(act)

	l.logger.Info("local execution listeners started")
	return &Subscription{l: l, act: act}, nil
}

// detach releases one reference and arms the teardown timer on the last one.
func (l *Lifecycle) detach(act *activation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	act.refs--
	if l.current != act || act.refs > 0 || l.state != StateRunning {
		return
	}

	l.state = StateStoppingGrace
	l.graceGen++
	gen := l.graceGen
	l.timer = time.AfterFunc(l.grace, func() { l.expire(act, gen) })

	l.logger.Debug("last registration detached, releasing listeners after grace period",
		"grace", l.grace,
	)
}

// cancelGraceLocked stops a pending teardown. Callers must hold l.mu.
func (l *Lifecycle) cancelGraceLocked() {
	l.graceGen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// expire tears the activation down if the grace period ran out untouched.
func (l *Lifecycle) expire(act *activation, gen uint64) {
	l.mu.Lock()
	if gen != l.graceGen || l.current != act || l.state != StateStoppingGrace || act.refs > 0 {
		l.mu.Unlock()
		return
	}

	act.closing = true
	l.current = nil
	l.timer = nil
	l.state = StateStopped
	stopping := make(chan struct{})
	l.stopping = stopping
	l.mu.Unlock()

	if err := act.listeners.Close(); err != nil {
		l.logger.Warn("local execution listeners closed with error", "error", err)
	}
	l.release(act, stopping)

	l.logger.Info("local execution listeners stopped")
}

// watch broadcasts an unexpected stop of the listeners to all subscribers.
func (l *Lifecycle) watch(act *activation) {
	<-act.listeners.Done()

	l.mu.Lock()
	if act.closing {
		l.mu.Unlock()
		return
	}

	act.closing = true
	if cause := act.listeners.Err(); cause != nil {
		act.err = fmt.Errorf("%w: %w", ErrServiceFailed, cause)
	} else {
		act.err = ErrServiceFailed
	}
	l.current = nil
	l.state = StateStopped
	l.cancelGraceLocked()
	stopping := make(chan struct{})
	l.stopping = stopping
	l.mu.Unlock()

	l.logger.Error("local execution listeners failed", "error", act.err)

	act.listeners.Close() //nolint:errcheck // Failure already recorded in act.err
	l.release(act, stopping)
}

// release marks the ports free and wakes anyone waiting to attach.
func (l *Lifecycle) release(act *activation, stopping chan struct{}) {
	l.mu.Lock()
	l.stopping = nil
	l.mu.Unlock()

	close(stopping)
	close(act.done)
}

// Done is closed when the listeners of this subscription are gone, either
// because they failed or because they were released after detaching.
func (s *Subscription) Done() <-chan struct{} {
	return s.act.done
}

// Err returns the failure that closed Done, or nil.
func (s *Subscription) Err() error {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	return s.act.err
}

// Detach releases the subscription. It is safe to call more than once.
func (s *Subscription) Detach() {
	s.once.Do(func() { s.l.detach(s.act) })
}
