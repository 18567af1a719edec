// Package adapter runs the configured devices.
//
// Each adapter owns one device for the life of the process. It registers
// the device with local execution, takes local state input from MQTT,
// publishes controller commands back to MQTT and records telemetry.
//
// Topics, relative to the configured prefix:
//
//	device/{id}/set         lock input: true, false or a partial state object
//	device/{id}/set/jammed  lock input: true or false
//	device/{id}/state       lock state after a controller command
//	device/{id}/event       scene activation: {"activated":bool}
//	device/{id}/config      retained device description
//
// Every collaborator is optional. An adapter with no bus, registrar or
// telemetry still serves its device to whatever is set.
package adapter
