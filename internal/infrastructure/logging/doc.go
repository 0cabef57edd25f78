// Package logging provides structured logging for the HomeSync node agent.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the agent.
//
// # Features
//
//   - JSON output for log shippers
//   - Text output for a serial or journald console
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("relay switched", "state", true)
//
// Never log broker or network passwords.
package logging
