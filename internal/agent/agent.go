package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/homesync/node-agent/internal/actuator"
	"github.com/homesync/node-agent/internal/command"
	"github.com/homesync/node-agent/internal/connectivity"
	"github.com/homesync/node-agent/internal/diag"
	"github.com/homesync/node-agent/internal/sensor"
	"github.com/homesync/node-agent/internal/telemetry"
)

// Inbox yields buffered inbound messages without blocking.
type Inbox interface {
	Poll() (topic string, payload []byte, ok bool)
}

// dropCounter is implemented by inboxes that discard on overflow.
type dropCounter interface {
	Dropped() uint64
}

// Archive stores sanitised readings locally or remotely. Writes must not block.
type Archive interface {
	WriteReading(r sensor.Reading, at time.Duration)
}

// Logger is the logging interface used by the agent.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds loop timing.
type Config struct {
	DeviceID string

	// TelemetryInterval is the minimum spacing of telemetry cycles.
	TelemetryInterval time.Duration

	// Channels are the measurement kinds published each cycle.
	Channels []string

	// LoopPeriod is the pause between iterations in Run.
	LoopPeriod time.Duration
}

// Deps holds the components the agent drives.
type Deps struct {
	Connectivity *connectivity.Manager
	Inbox        Inbox
	Interpreter  *command.Interpreter
	Relay        *actuator.Control
	Publisher    *telemetry.Publisher
	Sensor       sensor.Reader
	Archive      Archive       // optional
	Recorder     diag.Recorder // optional
	Logger       Logger        // optional
}

// Agent is the control-loop context object.
type Agent struct {
	cfg Config

	conn      *connectivity.Manager
	inbox     Inbox
	interp    *command.Interpreter
	relay     *actuator.Control
	publisher *telemetry.Publisher
	sensor    sensor.Reader
	archive   Archive
	recorder  diag.Recorder
	logger    Logger

	// uptime returns monotonic time since the agent started. Replaced in tests.
	uptime func() time.Duration

	lastTelemetry time.Duration
	lastDropped   uint64
	lastReading   sensor.Reading
	counters      counters

	status atomic.Pointer[Status]
}

type counters struct {
	iterations       uint64
	telemetryCycles  uint64
	telemetrySkipped uint64
	commandsApplied  uint64
	commandsIgnored  uint64
	inboxDropped     uint64
}

// New creates an Agent.
//
// Returns:
//   - *Agent: ready to Step or Run
//   - error: if a required dependency is missing
func New(cfg Config, deps Deps) (*Agent, error) {
	switch {
	case deps.Connectivity == nil:
		return nil, errors.New("agent: connectivity manager is required")
	case deps.Inbox == nil:
		return nil, errors.New("agent: inbox is required")
	case deps.Interpreter == nil:
		return nil, errors.New("agent: command interpreter is required")
	case deps.Relay == nil:
		return nil, errors.New("agent: relay control is required")
	case deps.Publisher == nil:
		return nil, errors.New("agent: telemetry publisher is required")
	case deps.Sensor == nil:
		return nil, errors.New("agent: sensor reader is required")
	}
	if cfg.TelemetryInterval <= 0 {
		return nil, fmt.Errorf("agent: telemetry interval must be positive, got %v", cfg.TelemetryInterval)
	}

	a := &Agent{
		cfg:       cfg,
		conn:      deps.Connectivity,
		inbox:     deps.Inbox,
		interp:    deps.Interpreter,
		relay:     deps.Relay,
		publisher: deps.Publisher,
		sensor:    deps.Sensor,
		archive:   deps.Archive,
		recorder:  deps.Recorder,
		logger:    deps.Logger,
	}
	if a.recorder == nil {
		a.recorder = diag.Discard
	}
	if a.logger == nil {
		a.logger = noopLogger{}
	}

	start := time.Now()
	a.uptime = func() time.Duration { return time.Since(start) }

	a.publishStatus(0)
	return a, nil
}

// Connected reports whether the broker session is up. Passed to the relay
// so it only notifies while connected.
func (a *Agent) Connected() bool {
	return a.conn.State() == connectivity.Connected
}

// Uptime returns time since the agent was created.
func (a *Agent) Uptime() time.Duration {
	return a.uptime()
}

// Run repeats Step every LoopPeriod until ctx is cancelled.
//
// Returns:
//   - error: nil on cancellation, or the fatal error from Step
func (a *Agent) Run(ctx context.Context) error {
	period := a.cfg.LoopPeriod
	if period <= 0 {
		period = 50 * time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	a.logger.Info("control loop started",
		"telemetry_interval", a.cfg.TelemetryInterval.String(),
		"loop_period", period.String(),
	)

	for {
		if err := a.Step(ctx, a.uptime()); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			a.logger.Info("control loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Step runs one loop iteration at uptime now.
//
// Returns:
//   - error: connectivity.ErrLinkUnavailable when the node must restart
func (a *Agent) Step(ctx context.Context, now time.Duration) error {
	a.counters.iterations++

	state, err := a.conn.EnsureConnected(ctx, now)
	if err != nil {
		a.publishStatus(now)
		return fmt.Errorf("ensuring connection: %w", err)
	}

	if state == connectivity.Connected {
		a.drainInbox(now)
	}
	a.checkInboxDrops(now)

	if now-a.lastTelemetry >= a.cfg.TelemetryInterval {
		a.lastTelemetry = now
		a.telemetryCycle(ctx, now)
	}

	a.publishStatus(now)
	return nil
}

func (a *Agent) drainInbox(now time.Duration) {
	for {
		topic, payload, ok := a.inbox.Poll()
		if !ok {
			return
		}

		cmd, ok := a.interp.Interpret(topic, payload)
		if !ok {
			a.counters.commandsIgnored++
			a.logger.Debug("inbound message ignored", "topic", topic, "bytes", len(payload))
			continue
		}

		a.logger.Info("command received", "topic", topic, "command", cmd.String())
		switch cmd.Action {
		case command.ActionSetActuator:
			a.relay.Set(cmd.State, now)
			a.counters.commandsApplied++
		}
	}
}

func (a *Agent) checkInboxDrops(now time.Duration) {
	dc, ok := a.inbox.(dropCounter)
	if !ok {
		return
	}
	dropped := dc.Dropped()
	if dropped <= a.lastDropped {
		return
	}
	a.recorder.Record(diag.Event{
		Kind:     diag.KindInboxOverflow,
		Severity: diag.SeverityWarning,
		Source:   "agent",
		Detail:   fmt.Sprintf("%d inbound messages dropped", dropped-a.lastDropped),
		Uptime:   now,
	})
	a.counters.inboxDropped = dropped
	a.lastDropped = dropped
}

func (a *Agent) telemetryCycle(ctx context.Context, now time.Duration) {
	reading, err := a.sensor.Read(ctx)
	if err != nil {
		a.recorder.Record(diag.Event{
			Kind:     diag.KindSensorReadFail,
			Severity: diag.SeverityWarning,
			Source:   "agent",
			Detail:   err.Error(),
			Uptime:   now,
		})
		reading = faultReading()
	}

	reading = telemetry.Sanitize(reading, a.recorder, now)
	a.lastReading = reading

	a.logger.Debug("reading",
		"voltage", reading.Voltage,
		"current", reading.Current,
		"power", reading.Power,
		"energy", reading.Energy,
		"frequency", reading.Frequency,
		"power_factor", reading.PowerFactor,
	)

	if a.archive != nil {
		a.archive.WriteReading(reading, now)
	}

	if !a.Connected() {
		a.counters.telemetrySkipped++
		a.recorder.Record(diag.Event{
			Kind:     diag.KindTelemetrySkip,
			Severity: diag.SeverityNotice,
			Source:   "agent",
			Detail:   "session not connected, cycle skipped",
			Uptime:   now,
		})
		return
	}

	// A failed channel is recorded by the publisher and does not stop the rest.
	for _, m := range telemetry.Measurements(reading, a.cfg.Channels, now) {
		_ = a.publisher.PublishMeasurement(m)
	}
	a.counters.telemetryCycles++
}

// faultReading is what a meter that did not answer looks like.
func faultReading() sensor.Reading {
	var r sensor.Reading
	for _, kind := range sensor.Kinds() {
		r.Set(kind, math.NaN())
	}
	return r
}
