// Package actuator owns the relay state.
//
// Control.Set is the only way the state changes. Every call writes the pin
// and, when the session is up, publishes the new state, even if the relay
// was already in that state. Redundant commands are not suppressed.
package actuator

import (
	"fmt"
	"time"

	"github.com/homesync/node-agent/internal/diag"
	"github.com/homesync/node-agent/internal/gpio"
)

// Notifier publishes relay state notifications.
type Notifier interface {
	PublishState(on bool, ts time.Duration) error
}

// Listener is told about every applied state, after the pin write.
type Listener func(on bool, at time.Duration)

// Control mirrors one boolean state to a pin and to outbound notifications.
//
// Not safe for concurrent use; it is owned by the control loop.
type Control struct {
	pin       gpio.Pin
	notifier  Notifier
	connected func() bool
	recorder  diag.Recorder
	listeners []Listener

	state    bool
	applied  uint64
	lastSet  time.Duration
	notified uint64
}

// New creates a Control.
//
// connected reports whether the session is up; notifications are only
// attempted when it returns true.
func New(pin gpio.Pin, notifier Notifier, connected func() bool, recorder diag.Recorder) *Control {
	if recorder == nil {
		recorder = diag.Discard
	}
	if connected == nil {
		connected = func() bool { return false }
	}
	return &Control{
		pin:       pin,
		notifier:  notifier,
		connected: connected,
		recorder:  recorder,
	}
}

// OnChange registers a listener called after every Set.
func (c *Control) OnChange(l Listener) {
	c.listeners = append(c.listeners, l)
}

// Set drives the relay to on at uptime now.
//
// A pin write failure is recorded as an actuator_fault error; the logical
// state and the notification still follow the command. Notification
// failures are left to the notifier's own diagnostics.
func (c *Control) Set(on bool, now time.Duration) {
	if err := c.pin.Set(on); err != nil {
		c.recorder.Record(diag.Event{
			Kind:     diag.KindActuatorFault,
			Severity: diag.SeverityError,
			Source:   "actuator",
			Detail:   fmt.Sprintf("writing %t: %v", on, err),
			Uptime:   now,
		})
	}

	c.state = on
	c.applied++
	c.lastSet = now

	if c.notifier != nil && c.connected() {
		if err := c.notifier.PublishState(on, now); err == nil {
			c.notified++
		}
	}

	for _, l := range c.listeners {
		l(on, now)
	}
}

// State returns the current logical relay state.
func (c *Control) State() bool { return c.state }

// Applied returns how many times Set was called.
func (c *Control) Applied() uint64 { return c.applied }

// Notified returns how many state notifications were handed to the session.
func (c *Control) Notified() uint64 { return c.notified }

// LastSet returns the uptime of the most recent Set.
func (c *Control) LastSet() time.Duration { return c.lastSet }
