// Package command turns inbound messages into actuator directives.
//
// Parsing is substring based, not structured. Deployed controllers send
// anything from {"state":true} to a bare true, and some send partial JSON,
// so the match order below is part of the wire contract:
//
//  1. contains "state":true  -> on
//  2. contains "state":false -> off
//  3. contains true          -> on
//  4. contains false         -> off
//
// Anything else yields no command. Nothing here returns an error.
package command

import (
	"bytes"
	"fmt"
)

// Action is what a command asks the node to do.
type Action int

const (
	// ActionSetActuator drives the relay to Command.State.
	ActionSetActuator Action = iota + 1
)

// Command is one decoded directive.
type Command struct {
	Action Action
	State  bool
}

// SetActuator returns a command that drives the relay to on.
func SetActuator(on bool) Command {
	return Command{Action: ActionSetActuator, State: on}
}

// String implements fmt.Stringer.
func (c Command) String() string {
	switch c.Action {
	case ActionSetActuator:
		return fmt.Sprintf("SetActuator(%t)", c.State)
	default:
		return "Unknown"
	}
}

var (
	markerStateTrue  = []byte(`"state":true`)
	markerStateFalse = []byte(`"state":false`)
	tokenTrue        = []byte("true")
	tokenFalse       = []byte("false")
)

// Interpreter decodes messages addressed to one command topic.
type Interpreter struct {
	topic string
}

// NewInterpreter creates an interpreter for the given command topic.
func NewInterpreter(topic string) *Interpreter {
	return &Interpreter{topic: topic}
}

// Topic returns the command topic this interpreter accepts.
func (i *Interpreter) Topic() string { return i.topic }

// Interpret decodes payload if topic is exactly the command topic.
//
// The payload is treated as text ending at the first NUL byte.
func (i *Interpreter) Interpret(topic string, payload []byte) (Command, bool) {
	if topic != i.topic {
		return Command{}, false
	}

	if n := bytes.IndexByte(payload, 0); n >= 0 {
		payload = payload[:n]
	}

	switch {
	case bytes.Contains(payload, markerStateTrue):
		return SetActuator(true), true
	case bytes.Contains(payload, markerStateFalse):
		return SetActuator(false), true
	case bytes.Contains(payload, tokenTrue):
		return SetActuator(true), true
	case bytes.Contains(payload, tokenFalse):
		return SetActuator(false), true
	default:
		return Command{}, false
	}
}
