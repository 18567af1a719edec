package mqtt

import "strings"

// DefaultTopicPrefix is the root of all NORA local topics.
const DefaultTopicPrefix = "nora"

// Topics builds NORA local MQTT topics under a configurable prefix.
//
//	topics := mqtt.NewTopics("nora")
//	topics.DeviceState("front-door") // "nora/device/front-door/state"
type Topics struct {
	prefix string
}

// NewTopics returns a topic builder for prefix. Surrounding slashes are
// trimmed and an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

func (t Topics) device(id, suffix string) string {
	return t.Prefix() + "/device/" + id + "/" + suffix
}

// DeviceSet carries local input for a device.
//
// Example: nora/device/front-door/set
func (t Topics) DeviceSet(id string) string {
	return t.device(id, "set")
}

// DeviceSetJammed carries jam detection input for a lock.
//
// Example: nora/device/front-door/set/jammed
func (t Topics) DeviceSetJammed(id string) string {
	return t.device(id, "set/jammed")
}

// DeviceState carries state changes caused by controller commands.
//
// Example: nora/device/front-door/state
func (t Topics) DeviceState(id string) string {
	return t.device(id, "state")
}

// DeviceEvent carries one-shot events such as scene activations.
//
// Example: nora/device/movie-night/event
func (t Topics) DeviceEvent(id string) string {
	return t.device(id, "event")
}

// DeviceConfig carries the retained device description.
//
// Example: nora/device/front-door/config
func (t Topics) DeviceConfig(id string) string {
	return t.device(id, "config")
}

// AgentStatus carries the retained online/offline status of this agent.
//
// Example: nora/agent/status
func (t Topics) AgentStatus() string {
	return t.Prefix() + "/agent/status"
}

// AllDeviceSets matches the input topics of every device.
//
// Pattern: nora/device/+/set
func (t Topics) AllDeviceSets() string {
	return t.device("+", "set")
}
