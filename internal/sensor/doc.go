// Package sensor defines how the node obtains electrical measurements.
//
// The acquisition protocol itself (PZEM-style Modbus registers, serial
// framing) lives behind the Reader interface. This package ships the data
// model and a simulated reader used on hosts without metering hardware.
//
// Any field of a Reading may be NaN when the meter reports a fault. Callers
// are expected to sanitise before publishing; see telemetry.Sanitize.
package sensor
