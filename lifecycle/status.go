package lifecycle

import (
	"errors"
	"strings"
)

// Status is the recorded lifecycle status of a VPS.
type Status string

const (
	StatusCreating Status = "creating"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
	StatusPaused   Status = "paused"
	StatusError    Status = "error"
	// StatusDeleting ends the modeled lifecycle; actual removal happens
	// elsewhere. It is not terminal: start, stop and delete still apply.
	StatusDeleting Status = "deleting"
)

var allStatuses = []Status{
	StatusCreating, StatusRunning, StatusStopped, StatusPaused, StatusError, StatusDeleting,
}

var (
	// ErrUnknownStatus is returned for status values outside the state machine.
	ErrUnknownStatus = errors.New("unknown vps status")
	// ErrUnknownCommand is returned for commands outside the state machine.
	ErrUnknownCommand = errors.New("unknown vps command")
)

// Statuses returns every status of the state machine.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", ErrUnknownStatus
	}
	return st, nil
}

func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

// Command is a lifecycle command issued against a VPS.
type Command string

const (
	CommandStart  Command = "start"
	CommandStop   Command = "stop"
	CommandReboot Command = "reboot"
	CommandDelete Command = "delete"
)

var allCommands = []Command{CommandStart, CommandStop, CommandReboot, CommandDelete}

// Commands returns every lifecycle command.
func Commands() []Command {
	out := make([]Command, len(allCommands))
	copy(out, allCommands)
	return out
}

func ParseCommand(s string) (Command, error) {
	c := Command(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := rules[c]; !ok {
		return "", ErrUnknownCommand
	}
	return c, nil
}

func (c Command) String() string { return string(c) }
