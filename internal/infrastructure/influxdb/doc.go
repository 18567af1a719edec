// Package influxdb writes device telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library and records lock
// state changes, scene activations and the latency of commands received
// over local execution.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteLockState("front-door", true, true, false)
//
// # Error Handling
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Batch failures are delivered to the SetOnError callback
// wrapped in ErrWriteFailed. Connection and health check errors are
// returned directly.
package influxdb
