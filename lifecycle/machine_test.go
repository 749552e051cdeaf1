package lifecycle

import (
	"errors"
	"testing"
)

func TestApplyMatrix(t *testing.T) {
	type outcome struct {
		allowed bool
		to      Status
	}
	expected := map[Command]map[Status]outcome{
		CommandStart: {
			StatusCreating: {true, StatusRunning},
			StatusRunning:  {false, ""},
			StatusStopped:  {true, StatusRunning},
			StatusPaused:   {true, StatusRunning},
			StatusError:    {true, StatusRunning},
			StatusDeleting: {true, StatusRunning},
		},
		CommandStop: {
			StatusCreating: {true, StatusStopped},
			StatusRunning:  {true, StatusStopped},
			StatusStopped:  {false, ""},
			StatusPaused:   {true, StatusStopped},
			StatusError:    {true, StatusStopped},
			StatusDeleting: {true, StatusStopped},
		},
		CommandReboot: {
			StatusCreating: {false, ""},
			StatusRunning:  {true, StatusRunning},
			StatusStopped:  {false, ""},
			StatusPaused:   {false, ""},
			StatusError:    {false, ""},
			StatusDeleting: {false, ""},
		},
		CommandDelete: {
			StatusCreating: {true, StatusDeleting},
			StatusRunning:  {true, StatusDeleting},
			StatusStopped:  {true, StatusDeleting},
			StatusPaused:   {true, StatusDeleting},
			StatusError:    {true, StatusDeleting},
			StatusDeleting: {true, StatusDeleting},
		},
	}

	for _, cmd := range Commands() {
		for _, from := range Statuses() {
			want := expected[cmd][from]
			tr, err := Apply(from, cmd)
			if want.allowed {
				if err != nil {
					t.Fatalf("%s from %s: unexpected error %v", cmd, from, err)
				}
				if tr.To != want.to || tr.From != from || tr.Command != cmd {
					t.Fatalf("%s from %s: got %+v", cmd, from, tr)
				}
				continue
			}
			if !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("%s from %s: expected ErrIllegalTransition, got %v", cmd, from, err)
			}
			var te *TransitionError
			if !errors.As(err, &te) || te.From != from || te.Command != cmd {
				t.Fatalf("%s from %s: expected TransitionError, got %#v", cmd, from, err)
			}
		}
	}
}

func TestRebootDoesNotChangeStatus(t *testing.T) {
	tr, err := Apply(StatusRunning, CommandReboot)
	if err != nil {
		t.Fatalf("reboot failed: %v", err)
	}
	if tr.Changed() {
		t.Fatal("reboot must keep the recorded status")
	}

	tr, err = Apply(StatusStopped, CommandStart)
	if err != nil || !tr.Changed() {
		t.Fatalf("start from stopped: %+v, %v", tr, err)
	}
}

func TestApplyRejectsUnknownInputs(t *testing.T) {
	if _, err := Apply(Status("melting"), CommandStart); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
	if _, err := Apply(StatusRunning, Command("pause")); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestParse(t *testing.T) {
	if s, err := ParseStatus("RUNNING"); err != nil || s != StatusRunning {
		t.Fatalf("ParseStatus = %q, %v", s, err)
	}
	if _, err := ParseStatus("gone"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
	if c, err := ParseCommand(" Reboot"); err != nil || c != CommandReboot {
		t.Fatalf("ParseCommand = %q, %v", c, err)
	}
	if _, err := ParseCommand("resize"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestTransitionErrorMessages(t *testing.T) {
	_, err := Apply(StatusRunning, CommandStart)
	if err == nil || err.Error() != "vps is already running" {
		t.Fatalf("unexpected message: %v", err)
	}
	_, err = Apply(StatusStopped, CommandReboot)
	if err == nil || err.Error() != "cannot reboot: vps is stopped, not running" {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestDeletingIsNotTerminal(t *testing.T) {
	for _, cmd := range []Command{CommandStart, CommandStop, CommandDelete} {
		if !Allowed(StatusDeleting, cmd) {
			t.Fatalf("%s from deleting must be allowed", cmd)
		}
	}
	tr, err := Apply(StatusDeleting, CommandDelete)
	if err != nil || tr.Changed() {
		t.Fatalf("repeat delete: %+v, %v", tr, err)
	}
	_, err = Apply(StatusDeleting, CommandReboot)
	if err == nil || err.Error() != "cannot reboot: vps is deleting, not running" {
		t.Fatalf("unexpected reboot result: %v", err)
	}
}
