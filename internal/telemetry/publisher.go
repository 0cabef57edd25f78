package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/homesync/node-agent/internal/diag"
	"github.com/homesync/node-agent/internal/sensor"
)

// RelaySuffix is the sub-path below the telemetry root that carries relay
// state notifications.
const RelaySuffix = "relay"

// Transport sends one message. Implemented by the MQTT session.
type Transport interface {
	Publish(topic string, payload []byte, retained bool) error
}

// Measurement is a named value and the uptime it was taken at.
type Measurement struct {
	Kind  string
	Value float64
	Taken time.Duration
}

// Measurements picks channels out of r, in order, all stamped with taken.
// Unknown channel names are skipped.
func Measurements(r sensor.Reading, channels []string, taken time.Duration) []Measurement {
	out := make([]Measurement, 0, len(channels))
	for _, kind := range channels {
		v, ok := r.Value(kind)
		if !ok {
			continue
		}
		out = append(out, Measurement{Kind: kind, Value: v, Taken: taken})
	}
	return out
}

// Publisher emits measurements and relay state on the node's telemetry topics.
type Publisher struct {
	transport Transport
	root      string
	recorder  diag.Recorder

	published uint64
	failed    uint64
}

// NewPublisher creates a publisher rooted at telemetryRoot
// (for example "homesync/poc/node1/telemetry").
func NewPublisher(transport Transport, telemetryRoot string, recorder diag.Recorder) *Publisher {
	if recorder == nil {
		recorder = diag.Discard
	}
	return &Publisher{
		transport: transport,
		root:      strings.TrimRight(telemetryRoot, "/"),
		recorder:  recorder,
	}
}

// Topic returns the topic a measurement kind is published on.
func (p *Publisher) Topic(kind string) string {
	return p.root + "/" + kind
}

// PublishMeasurement sends m to <root>/<kind>.
func (p *Publisher) PublishMeasurement(m Measurement) error {
	return p.send(p.Topic(m.Kind), FormatMeasurement(m.Value, m.Taken), m.Taken)
}

// PublishState sends a relay state notification to <root>/relay.
func (p *Publisher) PublishState(on bool, ts time.Duration) error {
	return p.send(p.Topic(RelaySuffix), FormatState(on, ts), ts)
}

// Published returns how many messages were handed to the transport.
func (p *Publisher) Published() uint64 { return p.published }

// Failed returns how many publishes were dropped.
func (p *Publisher) Failed() uint64 { return p.failed }

func (p *Publisher) send(topic string, payload []byte, ts time.Duration) error {
	if err := p.transport.Publish(topic, payload, false); err != nil {
		p.failed++
		p.recorder.Record(diag.Event{
			Kind:     diag.KindPublishFailed,
			Severity: diag.SeverityWarning,
			Source:   "telemetry",
			Detail:   fmt.Sprintf("%s: %v", topic, err),
			Uptime:   ts,
		})
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	p.published++
	return nil
}
