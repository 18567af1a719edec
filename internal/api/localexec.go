package api

import (
	"net"
	"net/http"
	"slices"
)

// LocalExecutionStatus is the response of GET /api/v1/local-execution.
type LocalExecutionStatus struct {
	Enabled bool     `json:"enabled"`
	ProxyID string   `json:"proxy_id,omitempty"`
	State   string   `json:"state,omitempty"`
	Devices []string `json:"devices"`
	Ports   *Ports   `json:"ports,omitempty"`

	// Bound addresses, present while the listeners are running.
	DiscoveryAddr string `json:"discovery_addr,omitempty"`
	CommandAddr   string `json:"command_addr,omitempty"`
}

// Ports lists the local execution ports.
type Ports struct {
	Discovery int `json:"discovery"`
	Reply     int `json:"reply"`
	Command   int `json:"command"`
}

// handleLocalExecution reports the local execution identity, listener
// state and registered devices.
func (s *Server) handleLocalExecution(w http.ResponseWriter, _ *http.Request) {
	if s.localExec == nil {
		writeJSON(w, http.StatusOK, LocalExecutionStatus{Devices: []string{}})
		return
	}

	devices := s.localExec.Devices()
	slices.Sort(devices)
	if devices == nil {
		devices = []string{}
	}

	p := s.localExec.Ports()
	status := LocalExecutionStatus{
		Enabled: true,
		ProxyID: s.localExec.Identity().String(),
		State:   string(s.localExec.State()),
		Devices: devices,
		Ports: &Ports{
			Discovery: p.Discovery,
			Reply:     p.Reply,
			Command:   p.Command,
		},
	}

	discovery, command := s.localExec.Addrs()
	status.DiscoveryAddr = addrString(discovery)
	status.CommandAddr = addrString(command)

	writeJSON(w, http.StatusOK, status)
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
