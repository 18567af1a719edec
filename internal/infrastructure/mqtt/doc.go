// Package mqtt provides MQTT client connectivity for NORA local.
//
// Device adapters use MQTT to bridge device state to the rest of the home:
// local input arrives on per-device set topics, and controller commands,
// scene events and device descriptions are published back out.
//
//	nora/device/{id}/set          input (payload true/false or partial state)
//	nora/device/{id}/set/jammed   lock jam input
//	nora/device/{id}/state        state after controller commands
//	nora/device/{id}/event        scene activations
//	nora/device/{id}/config       retained device description
//	nora/agent/status             retained agent status (with Last Will)
//
// The topic root is configurable via mqtt.topic_prefix.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.DeviceSet("front-door"), 1,
//	    func(topic string, payload []byte) error {
//	        return handleInput(payload)
//	    })
//
// Subscriptions are tracked and restored after a reconnect.
package mqtt
