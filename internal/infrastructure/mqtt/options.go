package mqtt

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/homesync/node-agent/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds a single session attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout bounds the hand-off of one publish.
	defaultPublishTimeout = 2 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// telemetryQoS is at-most-once: publishes are fire-and-forget.
	telemetryQoS = 0

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12

	// clientIDPrefix is shared by every POC node's client id.
	clientIDPrefix = "homesync-poc"
)

// hardwareNamespace scopes client id suffixes derived from a machine id.
var hardwareNamespace = uuid.MustParse("6f0c3f1e-3a51-4d1b-9a0e-8c8f4b0d5e21")

// ClientID builds the broker client identifier for a device.
//
// The suffix is stable for a given hardware id (for example the contents of
// /etc/machine-id) so the broker sees the same client across restarts. With
// no hardware id a random suffix is used.
//
// Example: homesync-poc-node1-3fa85f64
func ClientID(deviceID, hardwareID string) string {
	var id uuid.UUID
	if hw := strings.TrimSpace(hardwareID); hw != "" {
		id = uuid.NewSHA1(hardwareNamespace, []byte(hw))
	} else {
		id = uuid.New()
	}
	return fmt.Sprintf("%s-%s-%s", clientIDPrefix, deviceID, strings.ReplaceAll(id.String(), "-", "")[:8])
}

// buildClientOptions creates paho MQTT options from node config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID and credentials
//   - No automatic reconnect: the connectivity manager paces retries
//   - Retained "offline" last will on the status topic
//   - TLS configuration (if enabled)
func buildClientOptions(cfg config.MQTTConfig, clientID string, topics Topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	// Retries are owned by the control loop.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	connectTimeout := defaultConnectTimeout
	if cfg.ConnectTimeout > 0 {
		connectTimeout = time.Duration(cfg.ConnectTimeout) * time.Millisecond
	}
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	opts.SetWill(topics.Status(), PresenceOffline, byte(cfg.QoS), true)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion:         tlsMinVersion,
			InsecureSkipVerify: cfg.Broker.InsecureSkipVerify, // #nosec G402 -- opt-in for POC brokers
		})
	}

	return opts
}
