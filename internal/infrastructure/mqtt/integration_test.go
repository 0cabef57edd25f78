//go:build integration

package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/homesync/node-agent/internal/infrastructure/config"
)

// Integration tests against a real broker.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host: "127.0.0.1",
			Port: 1883,
		},
		QoS: 1,
		Topics: config.MQTTTopicsConfig{
			Telemetry: "homesync/int/node1/telemetry",
			Command:   "homesync/int/node1/command/relay",
			Status:    "homesync/int/node1/status",
		},
		ReconnectDelay: 1000,
		InboxSize:      8,
	}
}

// TestIntegration_CommandLoopback publishes to the command topic from a
// second client and expects it to arrive in the first client's inbox.
func TestIntegration_CommandLoopback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	node := New(integrationConfig(), ClientID("node1", "integration-node"))
	if err := node.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer node.Close()

	if err := node.Subscribe(node.Topics().Command()); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	controller := New(integrationConfig(), ClientID("controller", "integration-controller"))
	if err := controller.Connect(ctx); err != nil {
		t.Fatalf("controller Connect() error = %v", err)
	}
	defer controller.Close()

	if err := controller.Publish(node.Topics().Command(), []byte(`{"state":true}`), false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if topic, payload, ok := node.Poll(); ok {
			if topic != node.Topics().Command() || string(payload) != `{"state":true}` {
				t.Errorf("Poll() = %q %q", topic, payload)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("command never reached the inbox")
}

// TestIntegration_PresenceRetained verifies Close leaves a retained
// "offline" for late subscribers.
func TestIntegration_PresenceRetained(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	node := New(integrationConfig(), ClientID("node1", "integration-presence"))
	if err := node.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := node.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	watcher := New(integrationConfig(), ClientID("watcher", "integration-watcher"))
	if err := watcher.Connect(ctx); err != nil {
		t.Fatalf("watcher Connect() error = %v", err)
	}
	defer watcher.Close()
	if err := watcher.Subscribe(watcher.Topics().Status()); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, payload, ok := watcher.Poll(); ok {
			if string(payload) != PresenceOffline {
				t.Errorf("retained presence = %q, want %q", payload, PresenceOffline)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("no retained presence received")
}
