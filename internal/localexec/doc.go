// Package localexec lets registered devices be discovered and commanded
// directly on the LAN, bypassing the cloud relay.
//
// Two listeners make up the local protocol:
//
//   - A UDP discovery responder on port 6988. A controller broadcasts a fixed
//     probe; the agent answers on port 6989 of the sender with a CBOR map
//     {proxyId, port} naming this process and its command port.
//   - An HTTP command endpoint on port 6987 with a single route,
//     POST /nora-local-execution, which dispatches EXECUTE requests to the
//     registered device with the requested id.
//
// # Shared lifetime
//
// Every device registration shares one UDP socket and one HTTP listener.
// They are bound when the first device registers and released only after
// the last registration has been gone for a one second grace period, so
// reconfiguration churn never rebinds the ports:
//
//	stopped → starting → running → stopping_grace → stopped
//	                        ↑              │
//	                        └── attach ────┘
//
// # Usage
//
//	svc := localexec.New(localexec.WithLogger(log))
//
//	// Blocks until ctx is cancelled or the listeners fail.
//	err := svc.Register(ctx, lock)
//
// The local protocol is unauthenticated; it relies on the LAN trust boundary.
//
// Thread Safety: All exported methods are safe for concurrent use.
package localexec
