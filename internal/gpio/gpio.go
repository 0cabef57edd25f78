// Package gpio drives the single binary output the relay hangs off.
//
// The real implementation writes the Linux sysfs GPIO interface. The memory
// implementation lets the node run and be tested without hardware.
package gpio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// ErrPinUnavailable is returned when the output cannot be claimed or written.
var ErrPinUnavailable = errors.New("gpio: pin unavailable")

// Pin is a binary output.
type Pin interface {
	// Set drives the output to the logical state on.
	Set(on bool) error

	// Close releases the output.
	Close() error
}

// Memory is an in-memory pin. It records every write.
type Memory struct {
	mu     sync.Mutex
	state  bool
	writes int
	err    error
}

// NewMemory creates an in-memory pin that starts low.
func NewMemory() *Memory { return &Memory{} }

// Set implements Pin.
func (m *Memory) Set(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.state = on
	m.writes++
	return nil
}

// Close implements Pin.
func (m *Memory) Close() error { return nil }

// State returns the last value written.
func (m *Memory) State() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Writes returns how many successful writes the pin has seen.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FailWith makes every following Set return err. Pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// exportSettle is how long the kernel may take to create the pin directory
// after an export.
const exportSettle = 100 * time.Millisecond

// Sysfs is an output on the legacy /sys/class/gpio interface.
type Sysfs struct {
	root      string
	pin       int
	activeLow bool
	exported  bool
}

// OpenSysfs exports pin under root (normally /sys/class/gpio) if needed and
// configures it as an output.
func OpenSysfs(root string, pin int, activeLow bool) (*Sysfs, error) {
	s := &Sysfs{root: root, pin: pin, activeLow: activeLow}

	if _, err := os.Stat(s.dir()); os.IsNotExist(err) {
		if err := writeFile(filepath.Join(root, "export"), strconv.Itoa(pin)); err != nil {
			return nil, fmt.Errorf("%w: exporting pin %d: %w", ErrPinUnavailable, pin, err)
		}
		s.exported = true

		deadline := time.Now().Add(exportSettle)
		for {
			if _, err := os.Stat(s.dir()); err == nil {
				break
			}
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("%w: pin %d did not appear after export", ErrPinUnavailable, pin)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	if err := writeFile(filepath.Join(s.dir(), "direction"), "out"); err != nil {
		return nil, fmt.Errorf("%w: configuring pin %d: %w", ErrPinUnavailable, pin, err)
	}

	return s, nil
}

// Set implements Pin.
func (s *Sysfs) Set(on bool) error {
	level := on != s.activeLow
	value := "0"
	if level {
		value = "1"
	}
	if err := writeFile(filepath.Join(s.dir(), "value"), value); err != nil {
		return fmt.Errorf("%w: writing pin %d: %w", ErrPinUnavailable, s.pin, err)
	}
	return nil
}

// Close unexports the pin if OpenSysfs exported it.
func (s *Sysfs) Close() error {
	if !s.exported {
		return nil
	}
	if err := writeFile(filepath.Join(s.root, "unexport"), strconv.Itoa(s.pin)); err != nil {
		return fmt.Errorf("%w: unexporting pin %d: %w", ErrPinUnavailable, s.pin, err)
	}
	s.exported = false
	return nil
}

func (s *Sysfs) dir() string {
	return filepath.Join(s.root, "gpio"+strconv.Itoa(s.pin))
}

func writeFile(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644) //nolint:gosec // sysfs attribute files
}
