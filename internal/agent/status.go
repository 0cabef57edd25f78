package agent

import (
	"time"

	"github.com/homesync/node-agent/internal/sensor"
)

// Status is a read-only snapshot of the agent, replaced after every Step.
type Status struct {
	DeviceID  string        `json:"device_id"`
	State     string        `json:"state"`
	Connected bool          `json:"connected"`
	Relay     bool          `json:"relay"`
	Uptime    time.Duration `json:"-"`
	UptimeSec int64         `json:"uptime_seconds"`

	LastReading   sensor.Reading `json:"-"`
	Reading       ReadingView    `json:"last_reading"`
	LastTelemetry int64          `json:"last_telemetry_uptime_seconds"`

	ReconnectAttempts uint64 `json:"reconnect_attempts"`
	ReconnectFailures uint64 `json:"reconnect_failures"`
	Connects          uint64 `json:"connects"`

	Iterations       uint64 `json:"iterations"`
	TelemetryCycles  uint64 `json:"telemetry_cycles"`
	TelemetrySkipped uint64 `json:"telemetry_skipped"`
	Published        uint64 `json:"published"`
	PublishFailed    uint64 `json:"publish_failed"`
	CommandsApplied  uint64 `json:"commands_applied"`
	CommandsIgnored  uint64 `json:"commands_ignored"`
	InboxDropped     uint64 `json:"inbox_dropped"`
}

// ReadingView is the JSON form of the last sanitised reading.
type ReadingView struct {
	Voltage     float64 `json:"voltage"`
	Current     float64 `json:"current"`
	Power       float64 `json:"power"`
	Energy      float64 `json:"energy"`
	Frequency   float64 `json:"frequency"`
	PowerFactor float64 `json:"power_factor"`
}

// Status returns the most recent snapshot. Safe for concurrent use.
func (a *Agent) Status() *Status {
	return a.status.Load()
}

func (a *Agent) publishStatus(now time.Duration) {
	stats := a.conn.Stats()
	r := a.lastReading
	a.status.Store(&Status{
		DeviceID:    a.cfg.DeviceID,
		State:       a.conn.State().String(),
		Connected:   a.Connected(),
		Relay:       a.relay.State(),
		Uptime:      now,
		UptimeSec:   int64(now / time.Second),
		LastReading: r,
		Reading: ReadingView{
			Voltage:     r.Voltage,
			Current:     r.Current,
			Power:       r.Power,
			Energy:      r.Energy,
			Frequency:   r.Frequency,
			PowerFactor: r.PowerFactor,
		},
		LastTelemetry:     int64(a.lastTelemetry / time.Second),
		ReconnectAttempts: stats.Attempts,
		ReconnectFailures: stats.Failures,
		Connects:          stats.Connects,
		Iterations:        a.counters.iterations,
		TelemetryCycles:   a.counters.telemetryCycles,
		TelemetrySkipped:  a.counters.telemetrySkipped,
		Published:         a.publisher.Published(),
		PublishFailed:     a.publisher.Failed(),
		CommandsApplied:   a.counters.commandsApplied,
		CommandsIgnored:   a.counters.commandsIgnored,
		InboxDropped:      a.counters.inboxDropped,
	})
}
