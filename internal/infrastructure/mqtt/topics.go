package mqtt

import (
	"strings"

	"github.com/homesync/node-agent/internal/infrastructure/config"
)

// Presence payloads published retained on the status topic. Online is sent by
// the connectivity manager after every connect, offline is the last will.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Topics provides builders for one node's MQTT topics.
//
// Unlike a fleet-wide prefix scheme, every root is configured per device.
// Measurement topics below the telemetry root are built by the telemetry
// publisher.
type Topics struct {
	telemetry string
	command   string
	status    string
}

// NewTopics builds Topics from configuration, trimming trailing slashes.
func NewTopics(cfg config.MQTTTopicsConfig) Topics {
	return Topics{
		telemetry: strings.TrimRight(cfg.Telemetry, "/"),
		command:   strings.TrimRight(cfg.Command, "/"),
		status:    strings.TrimRight(cfg.Status, "/"),
	}
}

// TelemetryRoot returns the root all measurement topics hang off.
//
// Example: homesync/poc/node1/telemetry
func (t Topics) TelemetryRoot() string {
	return t.telemetry
}

// Command returns the single command topic the node listens on.
//
// Example: homesync/poc/node1/command/relay
func (t Topics) Command() string {
	return t.command
}

// Status returns the retained presence topic.
//
// Example: homesync/poc/node1/status
func (t Topics) Status() string {
	return t.status
}
