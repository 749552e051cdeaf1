package hypervisor

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/google/uuid"
)

// Command is one lifecycle command to execute on a hypervisor.
type Command struct {
	VPSID      int64
	ExternalID uuid.UUID
	HostID     *int64
	Command    lifecycle.Command
	// Target is the status the state machine recorded for this command.
	Target lifecycle.Status
}

func (c Command) String() string {
	return fmt.Sprintf("%s vps %d", c.Command, c.VPSID)
}

// Controller executes lifecycle commands and returns the status the
// hypervisor observed afterwards. Execute must return once ctx is done; the
// dispatcher stops waiting at the deadline, and a call still running after it
// can overlap the next command for the same VPS.
type Controller interface {
	Execute(ctx context.Context, cmd Command) (lifecycle.Status, error)
}

// ControllerFunc adapts a function to [Controller].
type ControllerFunc func(ctx context.Context, cmd Command) (lifecycle.Status, error)

func (f ControllerFunc) Execute(ctx context.Context, cmd Command) (lifecycle.Status, error) {
	return f(ctx, cmd)
}

// NoopController acknowledges every command as if the hypervisor reached the
// recorded target immediately. It stands in until a real backend is wired.
type NoopController struct{}

func (NoopController) Execute(_ context.Context, cmd Command) (lifecycle.Status, error) {
	return cmd.Target, nil
}
