package localexec

import (
	"slices"
	"sync"
)

// Registry is the set of devices currently available for local execution.
//
// Membership mirrors the registrations that are active: a device is added
// when its registration starts and removed when it ends. Lookups are by id
// and return the first match.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	devices []Device
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add inserts d unless the same handle is already present.
func (r *Registry) Add(d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.devices, d) {
		return
	}
	r.devices = append(r.devices, d)
}

// Remove drops every entry equal to d.
func (r *Registry) Remove(d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = slices.DeleteFunc(r.devices, func(v Device) bool {
		return v == d
	})
}

// Find returns the first device whose id matches.
func (r *Registry) Find(id string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.devices {
		if d.ID() == id {
			return d, true
		}
	}
	return nil, false
}

// IDs returns the ids of all registered devices in insertion order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.devices))
	for _, d := range r.devices {
		ids = append(ids, d.ID())
	}
	return ids
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
