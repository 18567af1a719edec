package device

import "errors"

// Domain errors for the device package.
var (
	// ErrInvalidDevice is returned when a device configuration fails validation.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidParams is returned when command parameters cannot be decoded.
	ErrInvalidParams = errors.New("device: invalid command params")
)
