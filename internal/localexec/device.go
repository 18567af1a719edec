package localexec

import (
	"context"
	"encoding/json"
)

// Device is a handle that can be commanded through the local endpoint.
//
// Implementations must be comparable (typically a pointer) since the
// registry tracks handles by identity.
type Device interface {
	// ID returns the identifier controllers address the device by.
	// It must be unique within the process.
	ID() string

	// ExecuteCommand runs a controller command. A nil result means the
	// command had no effect (unsupported, device offline) and is reported
	// to the controller as {"online":false}, as is a non-nil error.
	ExecuteCommand(ctx context.Context, command string, params json.RawMessage) (any, error)
}

// Metadata is the routing information a controller needs to reach a device
// through this agent instead of the cloud.
type Metadata struct {
	// ProxyID is the process identity sent in discovery replies.
	ProxyID string

	// OtherDeviceIDs are the ids the controller uses on the local route.
	OtherDeviceIDs []string
}

// Stamper is implemented by devices that publish local routing metadata
// alongside their description. Register stamps them before joining.
type Stamper interface {
	SetLocalExecution(meta Metadata)
}

// FuncDevice adapts a plain function to the Device interface.
//
// Use a pointer (&FuncDevice{...}) when registering.
type FuncDevice struct {
	DeviceID string
	Execute  func(ctx context.Context, command string, params json.RawMessage) (any, error)
}

// ID implements Device.
func (f *FuncDevice) ID() string { return f.DeviceID }

// ExecuteCommand implements Device.
func (f *FuncDevice) ExecuteCommand(ctx context.Context, command string, params json.RawMessage) (any, error) {
	if f.Execute == nil {
		return nil, nil
	}
	return f.Execute(ctx, command, params)
}

// Logger defines the logging interface used by the package.
// It is satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
