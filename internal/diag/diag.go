// Package diag carries local diagnostics: the notices, warnings and errors a
// node records while it keeps running.
//
// Nothing in the node propagates these upward. A component records an Event
// and carries on; recorders decide where it ends up (log, journal, metrics).
package diag

import (
	"sync"
	"time"
)

// Severity ranks a diagnostic.
type Severity int

const (
	SeverityNotice Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityNotice:
		return "notice"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Kind classifies what went wrong.
type Kind string

const (
	KindSensorFault    Kind = "sensor_fault"
	KindSessionFailed  Kind = "session_failed"
	KindSessionLost    Kind = "session_lost"
	KindPublishFailed  Kind = "publish_failed"
	KindActuatorFault  Kind = "actuator_fault"
	KindInboxOverflow  Kind = "inbox_overflow"
	KindLinkDown       Kind = "link_down"
	KindArchiveFailed  Kind = "archive_failed"
	KindTelemetrySkip  Kind = "telemetry_skipped"
	KindSensorReadFail Kind = "sensor_read_failed"
)

// Event is a single diagnostic record.
type Event struct {
	Kind     Kind
	Severity Severity
	// Source names the component that recorded the event.
	Source string
	Detail string
	// Uptime is the device uptime at which the event was recorded.
	Uptime time.Duration
}

// Recorder receives diagnostics. Implementations must not block the caller
// for longer than a local write.
type Recorder interface {
	Record(e Event)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(e Event)

// Record implements Recorder.
func (f RecorderFunc) Record(e Event) { f(e) }

// Discard drops every event.
var Discard Recorder = RecorderFunc(func(Event) {})

// Fanout forwards each event to every recorder in order. Nil entries are skipped.
type Fanout []Recorder

// Record implements Recorder.
func (f Fanout) Record(e Event) {
	for _, r := range f {
		if r != nil {
			r.Record(e)
		}
	}
}

// Logger is the subset of logging.Logger used by LogRecorder.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LogRecorder writes events to a structured logger at a level matching
// their severity.
type LogRecorder struct {
	Logger Logger
}

// Record implements Recorder.
func (l LogRecorder) Record(e Event) {
	if l.Logger == nil {
		return
	}
	args := []any{
		"kind", string(e.Kind),
		"source", e.Source,
		"detail", e.Detail,
		"uptime_s", int64(e.Uptime / time.Second),
	}
	switch e.Severity {
	case SeverityError:
		l.Logger.Error("diagnostic", args...)
	case SeverityWarning:
		l.Logger.Warn("diagnostic", args...)
	default:
		l.Logger.Info("diagnostic", args...)
	}
}

// Memory keeps every event it receives. Useful in tests and for the most
// recent events in the status view.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// Record implements Recorder.
func (m *Memory) Record(e Event) {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Count returns how many events of the given kind were recorded.
func (m *Memory) Count(kind Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// CountSeverity returns how many events were recorded at severity s.
func (m *Memory) CountSeverity(s Severity) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Severity == s {
			n++
		}
	}
	return n
}

// Reset forgets every recorded event.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.events = nil
	m.mu.Unlock()
}
