package localexec

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyID_String(t *testing.T) {
	id := NewProxyID()
	s := id.String()

	assert.Len(t, s, 32)
	decoded, err := hex.DecodeString(s)
	require.NoError(t, err)
	assert.Equal(t, id[:], decoded)
}

func TestNewProxyID_Random(t *testing.T) {
	assert.NotEqual(t, NewProxyID(), NewProxyID())
}

func TestProcessID_Stable(t *testing.T) {
	assert.Equal(t, ProcessID(), ProcessID())
}
