package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementLockState     = "lock_state"
	MeasurementSceneActivate = "scene_activation"
	MeasurementLocalCommand  = "local_command"
)

// WriteLockState records the state of a lock after it changed.
//
//	client.WriteLockState("front-door", true, false, false)
func (c *Client) WriteLockState(deviceID string, online, locked, jammed bool) {
	c.write(MeasurementLockState,
		map[string]string{"device_id": deviceID},
		map[string]any{
			"online":    online,
			"locked":    locked,
			"jammed":    jammed,
			"locked_nr": boolToInt(locked),
		},
	)
}

// WriteSceneActivation records a scene activation or deactivation.
func (c *Client) WriteSceneActivation(deviceID string, activated bool) {
	c.write(MeasurementSceneActivate,
		map[string]string{"device_id": deviceID},
		map[string]any{"activated": activated},
	)
}

// WriteLocalCommand records one command received over local execution.
// The command name is a tag since the set is small and fixed.
func (c *Client) WriteLocalCommand(deviceID, command string, online bool, latency time.Duration) {
	c.write(MeasurementLocalCommand,
		map[string]string{
			"device_id": deviceID,
			"command":   command,
		},
		map[string]any{
			"online":     online,
			"latency_ms": float64(latency.Microseconds()) / 1000,
		},
	)
}

func (c *Client) write(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, c.now()))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
