package telemetry

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/homesync/node-agent/internal/diag"
	"github.com/homesync/node-agent/internal/sensor"
)

type sent struct {
	topic    string
	payload  string
	retained bool
}

type mockTransport struct {
	sent []sent
	err  error
}

func (m *mockTransport) Publish(topic string, payload []byte, retained bool) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sent{topic: topic, payload: string(payload), retained: retained})
	return nil
}

func TestFormatMeasurement(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		uptime time.Duration
		want   string
	}{
		{"voltage", 230.1, 5 * time.Second, `{"value":230.10,"timestamp":5}`},
		{"rounds to two decimals", 276.125, 10 * time.Second, `{"value":276.12,"timestamp":10}`},
		{"rounds up", 1.236, 0, `{"value":1.24,"timestamp":0}`},
		{"zero", 0, 3 * time.Second, `{"value":0.00,"timestamp":3}`},
		{"truncates sub-second uptime", 1.2, 5999 * time.Millisecond, `{"value":1.20,"timestamp":5}`},
		{"large", 123456.789, 86400 * time.Second, `{"value":123456.79,"timestamp":86400}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(FormatMeasurement(tt.value, tt.uptime)); got != tt.want {
				t.Errorf("FormatMeasurement() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFormatState(t *testing.T) {
	if got := string(FormatState(true, 12*time.Second)); got != `{"state":true,"timestamp":12}` {
		t.Errorf("FormatState(true) = %s", got)
	}
	if got := string(FormatState(false, 0)); got != `{"state":false,"timestamp":0}` {
		t.Errorf("FormatState(false) = %s", got)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name       string
		in         sensor.Reading
		want       sensor.Reading
		wantFaults int
	}{
		{
			name:       "clean reading untouched",
			in:         sensor.Reading{Voltage: 230.1, Current: 1.2, Power: 276.12, Energy: 3.5, Frequency: 50, PowerFactor: 0.98},
			want:       sensor.Reading{Voltage: 230.1, Current: 1.2, Power: 276.12, Energy: 3.5, Frequency: 50, PowerFactor: 0.98},
			wantFaults: 0,
		},
		{
			name:       "NaN voltage",
			in:         sensor.Reading{Voltage: math.NaN(), Current: 1.2, Power: 276.12},
			want:       sensor.Reading{Voltage: 0, Current: 1.2, Power: 276.12},
			wantFaults: 1,
		},
		{
			name:       "negative current",
			in:         sensor.Reading{Voltage: 230, Current: -0.5, Power: 10},
			want:       sensor.Reading{Voltage: 230, Current: 0, Power: 10},
			wantFaults: 1,
		},
		{
			name:       "infinite power",
			in:         sensor.Reading{Voltage: 230, Power: math.Inf(1)},
			want:       sensor.Reading{Voltage: 230},
			wantFaults: 1,
		},
		{
			name: "every field faulty",
			in: sensor.Reading{
				Voltage: math.NaN(), Current: math.NaN(), Power: -1,
				Energy: math.NaN(), Frequency: math.Inf(-1), PowerFactor: -0.1,
			},
			want:       sensor.Reading{},
			wantFaults: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &diag.Memory{}
			got := Sanitize(tt.in, rec, 7*time.Second)

			if got != tt.want {
				t.Errorf("Sanitize() = %+v, want %+v", got, tt.want)
			}
			if n := rec.Count(diag.KindSensorFault); n != tt.wantFaults {
				t.Errorf("sensor_fault diagnostics = %d, want %d", n, tt.wantFaults)
			}
			for _, e := range rec.Events() {
				if e.Severity == diag.SeverityError {
					t.Errorf("sanitising recorded an error-level diagnostic: %+v", e)
				}
				if e.Uptime != 7*time.Second {
					t.Errorf("diagnostic uptime = %v, want 7s", e.Uptime)
				}
			}
		})
	}
}

func TestPublisherPublish(t *testing.T) {
	tr := &mockTransport{}
	p := NewPublisher(tr, "homesync/poc/node1/telemetry/", nil)

	if err := p.PublishMeasurement(Measurement{Kind: "voltage", Value: 230.1, Taken: 5 * time.Second}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := p.PublishState(true, 6*time.Second); err != nil {
		t.Fatalf("PublishState() error = %v", err)
	}

	want := []sent{
		{topic: "homesync/poc/node1/telemetry/voltage", payload: `{"value":230.10,"timestamp":5}`},
		{topic: "homesync/poc/node1/telemetry/relay", payload: `{"state":true,"timestamp":6}`},
	}
	if len(tr.sent) != len(want) {
		t.Fatalf("sent %d messages, want %d", len(tr.sent), len(want))
	}
	for i := range want {
		if tr.sent[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, tr.sent[i], want[i])
		}
	}
	if p.Published() != 2 {
		t.Errorf("Published() = %d, want 2", p.Published())
	}
}

func TestMeasurements(t *testing.T) {
	r := sensor.Reading{Voltage: 230.1, Current: 1.2, Power: 276.12, Energy: 9}

	got := Measurements(r, []string{"voltage", "current", "bogus", "power"}, 5*time.Second)

	want := []Measurement{
		{Kind: "voltage", Value: 230.1, Taken: 5 * time.Second},
		{Kind: "current", Value: 1.2, Taken: 5 * time.Second},
		{Kind: "power", Value: 276.12, Taken: 5 * time.Second},
	}
	if len(got) != len(want) {
		t.Fatalf("Measurements() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("measurement %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPublisherReading(t *testing.T) {
	tr := &mockTransport{}
	p := NewPublisher(tr, "homesync/poc/node1/telemetry", nil)

	r := sensor.Reading{Voltage: 230.1, Current: 1.2, Power: 276.12, Energy: 9}
	for _, m := range Measurements(r, []string{"voltage", "current", "power"}, 5*time.Second) {
		if err := p.PublishMeasurement(m); err != nil {
			t.Fatalf("PublishMeasurement(%s) error = %v", m.Kind, err)
		}
	}

	want := []string{
		`{"value":230.10,"timestamp":5}`,
		`{"value":1.20,"timestamp":5}`,
		`{"value":276.12,"timestamp":5}`,
	}
	if len(tr.sent) != len(want) {
		t.Fatalf("sent %d messages, want %d", len(tr.sent), len(want))
	}
	for i, w := range want {
		if tr.sent[i].payload != w {
			t.Errorf("payload %d = %s, want %s", i, tr.sent[i].payload, w)
		}
		if tr.sent[i].retained {
			t.Errorf("payload %d retained", i)
		}
	}
}

func TestPublisherFailureIsDiagnosticOnly(t *testing.T) {
	tr := &mockTransport{err: errors.New("broken pipe")}
	rec := &diag.Memory{}
	p := NewPublisher(tr, "t", rec)

	for _, m := range Measurements(sensor.Reading{Voltage: 1}, []string{"voltage", "current"}, 0) {
		if err := p.PublishMeasurement(m); err == nil {
			t.Errorf("PublishMeasurement(%s) error = nil, want transport error", m.Kind)
		}
	}
	if rec.Count(diag.KindPublishFailed) != 2 {
		t.Errorf("publish_failed diagnostics = %d, want 2", rec.Count(diag.KindPublishFailed))
	}
	if p.Failed() != 2 {
		t.Errorf("Failed() = %d, want 2", p.Failed())
	}
	if rec.CountSeverity(diag.SeverityError) != 0 {
		t.Error("failed publish recorded as error")
	}
}
