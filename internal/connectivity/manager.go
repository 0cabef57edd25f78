package connectivity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/homesync/node-agent/internal/diag"
	"github.com/homesync/node-agent/internal/link"
)

// ErrLinkUnavailable is returned when the initial link bring-up fails.
// It is the only error EnsureConnected returns, and only before the link has
// been up once.
var ErrLinkUnavailable = errors.New("connectivity: network link unavailable")

// State is the connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Session is the broker session the manager maintains.
// Implemented by the MQTT client.
type Session interface {
	Connect(ctx context.Context) error
	Subscribe(topic string) error
	Publish(topic string, payload []byte, retained bool) error
	IsConnected() bool
}

// Logger is the logging interface used by the manager.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Config holds the manager's timing and addressing.
type Config struct {
	// ReconnectDelay is the minimum spacing of session attempts.
	ReconnectDelay time.Duration

	// AttemptTimeout bounds one session dial. Zero leaves it to the session.
	AttemptTimeout time.Duration

	// CommandTopic is subscribed after every successful connect.
	CommandTopic string

	// StatusTopic receives the retained presence notice.
	StatusTopic string

	// OnlinePayload is published retained to StatusTopic after every connect.
	OnlinePayload string
}

// Stats counts attempts since boot.
type Stats struct {
	Attempts    uint64
	Failures    uint64
	Connects    uint64
	LastAttempt time.Duration
}

// Manager maintains the link and session. Not safe for concurrent use.
type Manager struct {
	link     link.Link
	session  Session
	cfg      Config
	recorder diag.Recorder
	logger   Logger

	state       State
	linkReady   bool
	attempted   bool
	lastAttempt time.Duration
	stats       Stats

	onTransition func(from, to State)
}

// NewManager creates a Manager in the Disconnected state.
func NewManager(l link.Link, session Session, cfg Config, recorder diag.Recorder, logger Logger) *Manager {
	if recorder == nil {
		recorder = diag.Discard
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		link:     l,
		session:  session,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
		state:    Disconnected,
	}
}

// OnTransition registers a callback invoked on every state change.
func (m *Manager) OnTransition(fn func(from, to State)) {
	m.onTransition = fn
}

// State returns the current connection state.
func (m *Manager) State() State { return m.state }

// Stats returns attempt counters.
func (m *Manager) Stats() Stats { return m.stats }

// EnsureConnected brings the session up if needed and allowed.
//
// Parameters:
//   - ctx: Bounds link bring-up and the session dial
//   - now: Current device uptime
//
// Returns:
//   - State: the state after this call
//   - error: ErrLinkUnavailable when the initial link bring-up is exhausted,
//     otherwise nil
//
// Once the link has been up, a lost link is not brought up here again. The
// attempt is recorded as link_down and counted as a failure, and the next one
// waits out ReconnectDelay like a refused session.
func (m *Manager) EnsureConnected(ctx context.Context, now time.Duration) (State, error) {
	if m.state == Connected {
		if m.healthy(now) {
			return Connected, nil
		}
		m.transition(Disconnected)
	}

	if m.attempted && now-m.lastAttempt < m.cfg.ReconnectDelay {
		return m.state, nil
	}

	m.attempted = true
	m.lastAttempt = now
	m.stats.Attempts++
	m.stats.LastAttempt = now
	m.transition(Connecting)

	if !m.link.IsUp() {
		if m.linkReady {
			m.stats.Failures++
			m.transition(Disconnected)
			m.recorder.Record(diag.Event{
				Kind:     diag.KindLinkDown,
				Severity: diag.SeverityWarning,
				Source:   "connectivity",
				Detail:   "link down, session attempt skipped",
				Uptime:   now,
			})
			return Disconnected, nil
		}
		if err := m.link.Up(ctx); err != nil {
			m.transition(Disconnected)
			m.recorder.Record(diag.Event{
				Kind:     diag.KindLinkDown,
				Severity: diag.SeverityError,
				Source:   "connectivity",
				Detail:   err.Error(),
				Uptime:   now,
			})
			return Disconnected, fmt.Errorf("%w: %w", ErrLinkUnavailable, err)
		}
	}
	m.linkReady = true

	if err := m.connect(ctx); err != nil {
		m.stats.Failures++
		m.transition(Disconnected)
		m.recorder.Record(diag.Event{
			Kind:     diag.KindSessionFailed,
			Severity: diag.SeverityWarning,
			Source:   "connectivity",
			Detail:   err.Error(),
			Uptime:   now,
		})
		return Disconnected, nil
	}

	m.stats.Connects++
	m.transition(Connected)

	if err := m.session.Subscribe(m.cfg.CommandTopic); err != nil {
		m.recorder.Record(diag.Event{
			Kind:     diag.KindSessionFailed,
			Severity: diag.SeverityWarning,
			Source:   "connectivity",
			Detail:   fmt.Sprintf("subscribing %s: %v", m.cfg.CommandTopic, err),
			Uptime:   now,
		})
	}
	if err := m.session.Publish(m.cfg.StatusTopic, []byte(m.cfg.OnlinePayload), true); err != nil {
		m.recorder.Record(diag.Event{
			Kind:     diag.KindPublishFailed,
			Severity: diag.SeverityNotice,
			Source:   "connectivity",
			Detail:   fmt.Sprintf("presence: %v", err),
			Uptime:   now,
		})
	}

	m.logger.Info("session established",
		"attempt", m.stats.Attempts,
		"command_topic", m.cfg.CommandTopic,
	)
	return Connected, nil
}

func (m *Manager) connect(ctx context.Context) error {
	if m.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.AttemptTimeout)
		defer cancel()
	}
	return m.session.Connect(ctx)
}

// healthy checks a Connected session and records why it is not.
func (m *Manager) healthy(now time.Duration) bool {
	if !m.link.IsUp() {
		m.recorder.Record(diag.Event{
			Kind:     diag.KindLinkDown,
			Severity: diag.SeverityWarning,
			Source:   "connectivity",
			Detail:   "link lost while connected",
			Uptime:   now,
		})
		return false
	}
	if !m.session.IsConnected() {
		m.recorder.Record(diag.Event{
			Kind:     diag.KindSessionLost,
			Severity: diag.SeverityWarning,
			Source:   "connectivity",
			Detail:   "session dropped by broker or transport",
			Uptime:   now,
		})
		return false
	}
	return true
}

func (m *Manager) transition(to State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	if to == Disconnected && from == Connected {
		m.logger.Warn("session lost")
	}
	if m.onTransition != nil {
		m.onTransition(from, to)
	}
}
