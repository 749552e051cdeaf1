package lifecycle

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when a command's guard rejects the current status.
var ErrIllegalTransition = errors.New("illegal vps state transition")

// TransitionError reports which command was refused from which status.
type TransitionError struct {
	From    Status
	Command Command
}

func (e *TransitionError) Error() string {
	switch {
	case e.Command == CommandStart:
		return "vps is already running"
	case e.Command == CommandStop:
		return "vps is already stopped"
	case e.Command == CommandReboot:
		return fmt.Sprintf("cannot reboot: vps is %s, not running", e.From)
	}
	return fmt.Sprintf("cannot %s vps in status %s", e.Command, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// Transition is an approved move of the state machine.
type Transition struct {
	Command Command
	From    Status
	To      Status
}

// Changed reports whether the transition alters the recorded status. A
// reboot keeps the VPS running and only triggers the external restart.
func (t Transition) Changed() bool {
	return t.From != t.To
}

type rule struct {
	target  Status
	allowed func(from Status) bool
}

var rules = map[Command]rule{
	CommandStart: {
		target:  StatusRunning,
		allowed: func(from Status) bool { return from != StatusRunning },
	},
	CommandStop: {
		target:  StatusStopped,
		allowed: func(from Status) bool { return from != StatusStopped },
	},
	CommandReboot: {
		target:  StatusRunning,
		allowed: func(from Status) bool { return from == StatusRunning },
	},
	CommandDelete: {
		target:  StatusDeleting,
		allowed: func(Status) bool { return true },
	},
}

// Apply evaluates cmd against the current status and returns the approved
// transition, or a *TransitionError wrapping [ErrIllegalTransition].
func Apply(from Status, cmd Command) (Transition, error) {
	if !from.Valid() {
		return Transition{}, fmt.Errorf("%w: %q", ErrUnknownStatus, from)
	}
	r, ok := rules[cmd]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
	if !r.allowed(from) {
		return Transition{}, &TransitionError{From: from, Command: cmd}
	}
	return Transition{Command: cmd, From: from, To: r.target}, nil
}

// Allowed reports whether cmd may be applied from status from.
func Allowed(from Status, cmd Command) bool {
	_, err := Apply(from, cmd)
	return err == nil
}

// Initial is the status every VPS is created in.
func Initial() Status {
	return StatusCreating
}
