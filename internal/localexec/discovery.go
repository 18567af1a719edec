package localexec

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// discoveryProbeHex is the payload controllers broadcast to find local agents.
const discoveryProbeHex = "021dfa122e51acb0b9ea5fbce02741ba69a37a203bd91027978cf29557cbb5b6"

// maxDatagramSize bounds a single discovery read. Anything longer cannot be a probe.
const maxDatagramSize = 2048

var discoveryProbe = mustDecodeHex(discoveryProbeHex)

// discoveryReply is the CBOR map sent back to a probing controller.
type discoveryReply struct {
	ProxyID string `cbor:"proxyId"`
	Port    int    `cbor:"port"`
}

// IsDiscoveryProbe reports whether payload is exactly the discovery probe.
func IsDiscoveryProbe(payload []byte) bool {
	return bytes.Equal(payload, discoveryProbe)
}

// Responder answers discovery probes received on a packet socket.
//
// It holds no per-packet state. Datagrams that are not the probe are
// ignored. Each reply is encoded and sent from its own goroutine so a
// failing send never delays the next read; failed replies are dropped
// because controllers re-probe periodically.
type Responder struct {
	conn      net.PacketConn
	reply     discoveryReply
	replyPort int
	logger    Logger
	wg        sync.WaitGroup
}

// NewResponder creates a responder that advertises identity and commandPort,
// replying to port replyPort of each prober.
func NewResponder(conn net.PacketConn, identity ProxyID, commandPort, replyPort int, logger Logger) *Responder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Responder{
		conn: conn,
		reply: discoveryReply{
			ProxyID: identity.String(),
			Port:    commandPort,
		},
		replyPort: replyPort,
		logger:    logger,
	}
}

// Serve reads datagrams until the socket is closed.
//
// Returns:
//   - error: nil once the socket is closed, or the read error that stopped it
func (r *Responder) Serve() error {
	defer r.wg.Wait()

	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading discovery socket: %w", err)
		}

		if !IsDiscoveryProbe(buf[:n]) {
			continue
		}

		sender, ok := from.(*net.UDPAddr)
		if !ok {
			continue
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.sendReply(sender.IP)
		}()
	}
}

// sendReply encodes the identity reply and sends it to ip on the reply port.
func (r *Responder) sendReply(ip net.IP) {
	payload, err := cbor.Marshal(r.reply)
	if err != nil {
		r.logger.Warn("encoding discovery reply", "error", err)
		return
	}

	dst := &net.UDPAddr{IP: ip, Port: r.replyPort}
	if _, err := r.conn.WriteTo(payload, dst); err != nil {
		r.logger.Debug("discovery reply dropped", "to", dst.String(), "error", err)
		return
	}

	r.logger.Debug("answered discovery probe", "to", dst.String())
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("localexec: invalid hex constant: %v", err))
	}
	return b
}
