// Package mqtt provides the node's messaging session on top of
// github.com/eclipse/paho.mqtt.golang.
//
// This package manages:
//   - Bounded, on-demand session attempts (no background reconnect)
//   - At-most-once publishing with a bounded hand-off
//   - A single command subscription buffered into a polled inbox
//   - Retained presence: "online" by the caller, "offline" as last will and on Close
//   - Per-device topic builders
//
// # Architecture
//
// The control loop owns every decision about the session. paho keeps the
// keepalive running on its own goroutines; inbound messages are copied into a
// bounded channel and collected by Poll on the loop goroutine, so every side
// effect of a command happens inside one loop iteration.
//
//	sensor → control loop → Client.Publish → broker
//	broker → paho goroutine → inbox → Client.Poll → control loop
//
// # Security Considerations
//
//   - Use TLS (mqtt.broker.tls) for any broker reachable beyond the LAN
//   - insecure_skip_verify exists for proof-of-concept brokers and should
//     not be enabled in production
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, mqtt.ClientID(cfg.Device.ID, machineID))
//	if err := client.Connect(ctx); err != nil {
//	    // retry later
//	}
//	defer client.Close()
//
//	_ = client.Subscribe(client.Topics().Command())
//	for topic, payload, ok := client.Poll(); ok; topic, payload, ok = client.Poll() {
//	    handle(topic, payload)
//	}
package mqtt
