// Package agent is the node's control loop.
//
// An Agent owns every piece of mutable node state (connection manager,
// relay, timers) and advances it one Step at a time on a single goroutine:
//
//  1. connectivity: EnsureConnected, possibly a bounded reconnect attempt
//  2. inbound: while connected, drain the session inbox through the command
//     interpreter into the relay
//  3. telemetry: when the interval has elapsed, sample, sanitise, archive and
//     (only while connected) publish
//
// Inbound commands therefore always land before the telemetry of the same
// iteration. A delayed iteration skips missed telemetry ticks rather than
// catching up.
//
// The only value other goroutines see is the Status snapshot, replaced
// atomically at the end of each Step.
package agent
