// Package link models the network link the broker session rides on.
//
// A node with no link has nothing useful to do, so boot-time bring-up is
// bounded: Up polls a fixed number of times and then gives up with
// ErrUnavailable, and the process exits for its supervisor to restart it.
// Once the link has been up, losses are only observed through IsUp.
package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrUnavailable is returned when the link does not come up within its
// attempt budget.
var ErrUnavailable = errors.New("link: unavailable")

// Link is a network link that can be brought up and checked.
type Link interface {
	// Up blocks until the link is usable or the attempt budget is spent.
	Up(ctx context.Context) error

	// IsUp reports the current link health without blocking.
	IsUp() bool
}

// Interface waits for a named host network interface to be up and to carry
// at least one address.
type Interface struct {
	name     string
	attempts int
	poll     time.Duration

	// isUp reports interface health. Replaced in tests.
	isUp func(name string) bool
}

// NewInterface creates a link bound to a host interface.
//
// The budget is timeout/poll attempts, at least one. With the default
// 15s and 500ms that is 30 checks half a second apart.
func NewInterface(name string, timeout, poll time.Duration) *Interface {
	attempts := 1
	if poll > 0 && timeout > poll {
		attempts = int(timeout / poll)
	}
	return &Interface{
		name:     name,
		attempts: attempts,
		poll:     poll,
		isUp:     interfaceUp,
	}
}

// Name returns the interface name.
func (l *Interface) Name() string { return l.name }

// Up implements Link.
func (l *Interface) Up(ctx context.Context) error {
	for i := 0; i < l.attempts; i++ {
		if l.isUp(l.name) {
			return nil
		}
		if i == l.attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", ErrUnavailable, l.name, ctx.Err())
		case <-time.After(l.poll):
		}
	}

	return fmt.Errorf("%w: %s not up after %d attempts", ErrUnavailable, l.name, l.attempts)
}

// IsUp implements Link.
func (l *Interface) IsUp() bool {
	return l.isUp(l.name)
}

func interfaceUp(name string) bool {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return false
	}
	if iface.Flags&net.FlagUp == 0 {
		return false
	}
	addrs, err := iface.Addrs()
	return err == nil && len(addrs) > 0
}

// Static is a link that is always up. Used on wired hosts where the
// operating system owns the network and in tests.
type Static struct{}

// Up implements Link.
func (Static) Up(context.Context) error { return nil }

// IsUp implements Link.
func (Static) IsUp() bool { return true }
