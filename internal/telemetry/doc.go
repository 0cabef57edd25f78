// Package telemetry formats and emits the node's outbound events.
//
// Two payload shapes exist and both are consumed by deployed backends, so
// they are byte-exact:
//
//	{"value":230.10,"timestamp":42}
//	{"state":true,"timestamp":42}
//
// Timestamps are whole seconds of device uptime, not wall-clock time: the
// node has no time synchronisation. Consumers that need absolute time stamp
// messages on receipt.
//
// Delivery is at most once. A failed publish is dropped and recorded as a
// diagnostic; nothing is retried or buffered.
package telemetry
