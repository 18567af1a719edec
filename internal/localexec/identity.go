package localexec

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// ProxyID identifies this agent process to controllers.
// It is sent hex encoded (32 characters) in every discovery reply.
type ProxyID [16]byte

// String returns the lowercase hex form used on the wire.
func (p ProxyID) String() string {
	return hex.EncodeToString(p[:])
}

// NewProxyID returns a fresh random identity.
func NewProxyID() ProxyID {
	var id ProxyID
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(id[:])
	return id
}

// ProcessID returns the identity of the running process.
// It is generated on first use and never changes afterwards; a restarted
// agent advertises a new one.
var ProcessID = sync.OnceValue(NewProxyID)
