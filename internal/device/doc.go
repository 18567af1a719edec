// Package device models the smart-home devices exposed by NORA local.
//
// Each device carries a Google Home style description (Info) and its live
// state, and executes controller commands against that state. Devices are
// handed to the local execution service as localexec.Device values and are
// stamped with the routing metadata a controller needs to reach this agent.
//
// # Device Types
//
//   - Lock: LockUnlock trait with jam detection
//   - Scene: Scene trait, optionally reversible
//
// # Usage
//
//	lock, err := device.NewLock(device.LockConfig{ID: "front-door", Name: "Front door"})
//	if err != nil {
//	    return err
//	}
//	lock.SetOnCommandUpdate(func(s device.LockState) {
//	    // push to the physical lock
//	})
//
//	go svc.Register(ctx, lock)
//
// # Thread Safety
//
// All device methods are safe for concurrent use. Callbacks run on the
// caller's goroutine after the device lock has been released and must not
// block.
package device
