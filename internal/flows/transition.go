package flows

import (
	"context"

	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/store"
)

// TransitionFailureKind classifies lifecycle command failures for root-level mapping.
type TransitionFailureKind int

const (
	TransitionFailureNone TransitionFailureKind = iota
	TransitionFailureNotFound
	TransitionFailureLoad
	TransitionFailureForbidden
	TransitionFailureIllegal
	// TransitionFailureRaced means another command changed the status between
	// the read and the compare-and-swap.
	TransitionFailureRaced
	TransitionFailureCommit
)

// TransitionResult carries the committed VPS or failure metadata. On
// TransitionFailureRaced, VPS holds the state the winner left behind.
type TransitionResult struct {
	Failure    TransitionFailureKind
	Err        error
	VPS        *store.VPS
	Transition lifecycle.Transition
}

// TransitionDeps captures lifecycle command dependencies.
type TransitionDeps struct {
	Load            func(context.Context, int64) (*store.VPS, error)
	IsNotFound      func(error) bool
	IsStatusChanged func(error) bool
	Authorize       func(*store.VPS) error
	// Commit swaps the status from t.From to t.To only if it is still t.From.
	Commit   func(context.Context, int64, lifecycle.Transition) (*store.VPS, error)
	Dispatch func(context.Context, *store.VPS, lifecycle.Transition)
}

// RunTransition loads the VPS, authorizes the caller, checks the state
// machine and commits the new status by compare-and-swap. The hypervisor is
// only told after the commit succeeds. A lost swap is reported, not retried.
func RunTransition(ctx context.Context, id int64, cmd lifecycle.Command, deps TransitionDeps) TransitionResult {
	v, err := deps.Load(ctx, id)
	if err != nil {
		if deps.IsNotFound(err) {
			return TransitionResult{Failure: TransitionFailureNotFound, Err: err}
		}
		return TransitionResult{Failure: TransitionFailureLoad, Err: err}
	}

	if err := deps.Authorize(v); err != nil {
		return TransitionResult{Failure: TransitionFailureForbidden, Err: err, VPS: v}
	}

	t, err := lifecycle.Apply(v.Status, cmd)
	if err != nil {
		return TransitionResult{Failure: TransitionFailureIllegal, Err: err, VPS: v}
	}

	updated, err := deps.Commit(ctx, v.ID, t)
	if err != nil {
		switch {
		case deps.IsStatusChanged(err):
			return TransitionResult{Failure: TransitionFailureRaced, Err: err, VPS: updated, Transition: t}
		case deps.IsNotFound(err):
			return TransitionResult{Failure: TransitionFailureNotFound, Err: err, VPS: v}
		}
		return TransitionResult{Failure: TransitionFailureCommit, Err: err, VPS: v, Transition: t}
	}

	if deps.Dispatch != nil {
		deps.Dispatch(ctx, updated, t)
	}
	return TransitionResult{VPS: updated, Transition: t}
}
