package actuator

import (
	"errors"
	"testing"
	"time"

	"github.com/homesync/node-agent/internal/diag"
	"github.com/homesync/node-agent/internal/gpio"
)

type notification struct {
	on bool
	ts time.Duration
}

type mockNotifier struct {
	calls []notification
	err   error
}

func (m *mockNotifier) PublishState(on bool, ts time.Duration) error {
	m.calls = append(m.calls, notification{on: on, ts: ts})
	return m.err
}

func connectedFunc(v *bool) func() bool {
	return func() bool { return *v }
}

func TestSetIdempotentStillNotifies(t *testing.T) {
	pin := gpio.NewMemory()
	n := &mockNotifier{}
	rec := &diag.Memory{}
	connected := true
	c := New(pin, n, connectedFunc(&connected), rec)

	c.Set(true, 10*time.Second)
	c.Set(true, 11*time.Second)

	if !pin.State() {
		t.Error("pin is off after SetActuator(true) twice")
	}
	if pin.Writes() != 2 {
		t.Errorf("pin writes = %d, want 2", pin.Writes())
	}
	if len(n.calls) != 2 {
		t.Fatalf("notifications = %d, want 2", len(n.calls))
	}
	if n.calls[0] != (notification{true, 10 * time.Second}) || n.calls[1] != (notification{true, 11 * time.Second}) {
		t.Errorf("notifications = %+v", n.calls)
	}
	if rec.CountSeverity(diag.SeverityError) != 0 {
		t.Errorf("error diagnostics recorded: %+v", rec.Events())
	}
	if c.Notified() != 2 || c.Applied() != 2 {
		t.Errorf("Notified() = %d, Applied() = %d, want 2, 2", c.Notified(), c.Applied())
	}
}

func TestSetWhileDisconnected(t *testing.T) {
	pin := gpio.NewMemory()
	n := &mockNotifier{}
	connected := false
	c := New(pin, n, connectedFunc(&connected), nil)

	c.Set(true, time.Second)

	if !pin.State() || !c.State() {
		t.Error("relay not driven while disconnected")
	}
	if len(n.calls) != 0 {
		t.Errorf("notifications = %d while disconnected, want 0", len(n.calls))
	}
}

func TestSetPinFailure(t *testing.T) {
	pin := gpio.NewMemory()
	pin.FailWith(errors.New("EIO"))
	n := &mockNotifier{}
	rec := &diag.Memory{}
	connected := true
	c := New(pin, n, connectedFunc(&connected), rec)

	c.Set(true, time.Second)

	if rec.Count(diag.KindActuatorFault) != 1 || rec.CountSeverity(diag.SeverityError) != 1 {
		t.Errorf("diagnostics = %+v, want one actuator_fault error", rec.Events())
	}
	if !c.State() {
		t.Error("logical state did not follow the command")
	}
	if len(n.calls) != 1 || !n.calls[0].on {
		t.Errorf("notifications = %+v, want one true", n.calls)
	}
}

func TestNotifyFailureNotCounted(t *testing.T) {
	n := &mockNotifier{err: errors.New("dropped")}
	connected := true
	c := New(gpio.NewMemory(), n, connectedFunc(&connected), nil)

	c.Set(false, 0)

	if c.Notified() != 0 {
		t.Errorf("Notified() = %d, want 0", c.Notified())
	}
	if len(n.calls) != 1 {
		t.Errorf("notify attempts = %d, want 1", len(n.calls))
	}
}

func TestOnChange(t *testing.T) {
	c := New(gpio.NewMemory(), nil, nil, nil)

	var got []notification
	c.OnChange(func(on bool, at time.Duration) {
		got = append(got, notification{on, at})
	})

	c.Set(true, time.Second)
	c.Set(false, 2*time.Second)

	if len(got) != 2 || got[0] != (notification{true, time.Second}) || got[1] != (notification{false, 2 * time.Second}) {
		t.Errorf("listener calls = %+v", got)
	}
	if c.LastSet() != 2*time.Second {
		t.Errorf("LastSet() = %v, want 2s", c.LastSet())
	}
}
