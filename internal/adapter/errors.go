package adapter

import "errors"

var (
	// ErrInvalidPayload indicates an MQTT input could not be parsed.
	ErrInvalidPayload = errors.New("adapter: invalid payload")
)
