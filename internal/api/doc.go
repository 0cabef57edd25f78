// Package api implements the node's local status HTTP server.
//
// This package provides:
//   - Liveness at /healthz (200 while the broker session is connected)
//   - The agent status snapshot at /api/v1/status
//   - Prometheus metrics at /metrics
//   - The diagnostics journal and relay history when the journal is enabled
//   - Middleware stack (request ID, logging, recovery)
//
// # Read-only
//
// The server never commands the relay. Commands arrive over MQTT only, so the
// broker stays the single control path.
package api
