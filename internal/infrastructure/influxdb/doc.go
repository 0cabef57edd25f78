// Package influxdb archives node telemetry to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Every sanitised
// reading becomes one point per channel, named after the channel and tagged
// with the device and project, mirroring how the HomeSync backend stores
// telemetry. Relay changes are written as "relay" points.
//
// # Usage
//
//	archive, err := influxdb.Connect(cfg.InfluxDB, influxdb.Deps{
//	    DeviceID: cfg.Device.ID,
//	    Project:  cfg.Device.Project,
//	    Recorder: recorder,
//	})
//	if err != nil {
//	    return err
//	}
//	defer archive.Close()
//
//	archive.WriteReading(reading, uptime)
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval). Failures
// surface asynchronously and are reported as archive_failed diagnostics.
// Connection and health check errors are returned directly.
package influxdb
