package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nerrad567/nora-local/internal/device"
	"github.com/nerrad567/nora-local/internal/infrastructure/mqtt"
)

// Lock runs a lock device.
type Lock struct {
	runner
	lock *device.Lock
}

// NewLock creates an adapter for lock.
func NewLock(lock *device.Lock, opts Options) *Lock {
	return &Lock{
		runner: newRunner(lock, opts),
		lock:   lock,
	}
}

// Run serves the lock until ctx is cancelled.
func (a *Lock) Run(ctx context.Context) error {
	a.lock.SetOnCommandUpdate(a.handleCommandUpdate)
	defer a.lock.SetOnCommandUpdate(nil)

	id := a.lock.ID()
	return a.run(ctx, map[string]mqtt.MessageHandler{
		a.opts.Topics.DeviceSet(id):       a.handleSet,
		a.opts.Topics.DeviceSetJammed(id): a.handleSetJammed,
	})
}

// handleCommandUpdate publishes a state change made by the controller.
func (a *Lock) handleCommandUpdate(state device.LockState) {
	id := a.lock.ID()
	if state.IsJammed {
		a.logger.Error("lock is jammed", "device_id", id, "locked", state.IsLocked)
		return
	}

	a.logger.Info("lock commanded", "device_id", id, "locked", state.IsLocked)
	a.publish(a.opts.Topics.DeviceState(id), state, false)
	a.record(state)
}

// handleSet applies local input: true or false sets the lock state, an
// object is a partial state update.
func (a *Lock) handleSet(_ string, payload []byte) error {
	var u device.LockUpdate
	if b, ok := parseBool(payload); ok {
		u.IsLocked = &b
	} else if err := json.Unmarshal(payload, &u); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, truncate(payload))
	}

	state := a.lock.UpdateState(u)
	a.logger.Debug("lock state updated", "device_id", a.lock.ID(), "state", state)
	a.record(state)
	return nil
}

func (a *Lock) handleSetJammed(_ string, payload []byte) error {
	b, ok := parseBool(payload)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, truncate(payload))
	}

	state := a.lock.UpdateState(device.LockUpdate{IsJammed: &b})
	if b {
		a.logger.Warn("lock reported jammed", "device_id", a.lock.ID())
	}
	a.record(state)
	return nil
}

func (a *Lock) record(state device.LockState) {
	if a.opts.Telemetry != nil {
		a.opts.Telemetry.WriteLockState(a.lock.ID(), state.Online, state.IsLocked, state.IsJammed)
	}
}

// parseBool accepts the payloads strconv.ParseBool does, with or without
// surrounding whitespace or JSON string quotes.
func parseBool(payload []byte) (bool, bool) {
	s := string(bytes.Trim(bytes.TrimSpace(payload), `"`))
	b, err := strconv.ParseBool(s)
	return b, err == nil
}

const maxLoggedPayload = 64

func truncate(payload []byte) string {
	if len(payload) > maxLoggedPayload {
		return string(payload[:maxLoggedPayload]) + "..."
	}
	return string(payload)
}
