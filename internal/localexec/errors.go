package localexec

import "errors"

// Domain errors for the localexec package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, localexec.ErrStartFailed) {
//	    // ports already bound, etc.
//	}
var (
	// ErrStartFailed is returned to every attached and pending registration
	// when the discovery socket or the command listener cannot be started.
	ErrStartFailed = errors.New("localexec: starting listeners failed")

	// ErrServiceFailed is delivered to every attached registration when a
	// running listener stops unexpectedly.
	ErrServiceFailed = errors.New("localexec: listeners failed")

	// ErrInvalidDevice is returned when registering a nil device or one
	// without an id.
	ErrInvalidDevice = errors.New("localexec: invalid device")
)
