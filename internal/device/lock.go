package device

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/nora-local/internal/localexec"
)

// LockConfig configures a Lock.
type LockConfig struct {
	ID       string
	Name     string
	RoomHint string

	// ErrorIfStateUnchanged rejects a lock or unlock command that would not
	// change the state with alreadyLocked / alreadyUnlocked.
	ErrorIfStateUnchanged bool
}

// LockState is the reported state of a lock.
type LockState struct {
	Online   bool `json:"online"`
	IsLocked bool `json:"isLocked"`
	IsJammed bool `json:"isJammed"`
}

// LockUpdate is a partial state change from local input. Nil fields are left
// unchanged.
type LockUpdate struct {
	Online   *bool `json:"online,omitempty"`
	IsLocked *bool `json:"isLocked,omitempty"`
	IsJammed *bool `json:"isJammed,omitempty"`
}

type lockUnlockParams struct {
	Lock *bool `json:"lock"`
}

// Lock is a door lock with the LockUnlock trait.
type Lock struct {
	base

	errorIfUnchanged bool
	state            LockState
	onCommand        func(LockState)
}

// NewLock creates an online, unlocked lock.
func NewLock(cfg LockConfig) (*Lock, error) {
	if err := validateIdentity(cfg.ID, cfg.Name); err != nil {
		return nil, err
	}

	return &Lock{
		base: base{info: Info{
			ID:              cfg.ID,
			Type:            TypeLock,
			Traits:          []string{TraitLockUnlock},
			Name:            Name{Name: cfg.Name},
			RoomHint:        cfg.RoomHint,
			WillReportState: true,
		}},
		errorIfUnchanged: cfg.ErrorIfStateUnchanged,
		state:            LockState{Online: true},
	}, nil
}

// State returns the current state.
func (l *Lock) State() LockState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// SetOnCommandUpdate registers a callback fired after a controller command
// changed the state.
func (l *Lock) SetOnCommandUpdate(fn func(LockState)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onCommand = fn
}

// UpdateState applies local input and returns the resulting state.
func (l *Lock) UpdateState(u LockUpdate) LockState {
	l.mu.Lock()
	defer l.mu.Unlock()

	if u.Online != nil {
		l.state.Online = *u.Online
	}
	if u.IsLocked != nil {
		l.state.IsLocked = *u.IsLocked
	}
	if u.IsJammed != nil {
		l.state.IsJammed = *u.IsJammed
	}
	return l.state
}

// ExecuteCommand handles a controller command. An offline lock and unknown
// commands produce no result.
func (l *Lock) ExecuteCommand(_ context.Context, command string, params json.RawMessage) (any, error) {
	if command != CommandLockUnlock {
		return nil, nil
	}

	var p lockUnlockParams
	if err := json.Unmarshal(params, &p); err != nil || p.Lock == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParams, command)
	}

	l.mu.Lock()
	if !l.state.Online {
		l.mu.Unlock()
		return nil, nil
	}
	if l.state.IsJammed {
		l.mu.Unlock()
		return Result{Online: true, ErrorCode: ErrorCodeJammed}, nil
	}
	if l.errorIfUnchanged && l.state.IsLocked == *p.Lock {
		l.mu.Unlock()
		code := ErrorCodeAlreadyUnlocked
		if *p.Lock {
			code = ErrorCodeAlreadyLocked
		}
		return Result{Online: true, ErrorCode: code}, nil
	}

	l.state.IsLocked = *p.Lock
	state := l.state
	fn := l.onCommand
	l.mu.Unlock()

	if fn != nil {
		fn(state)
	}
	return state, nil
}

var (
	_ localexec.Device  = (*Lock)(nil)
	_ localexec.Stamper = (*Lock)(nil)
)
