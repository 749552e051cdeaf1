package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/store"
)

var (
	errGone    = errors.New("gone")
	errChanged = errors.New("changed")
	errDenied  = errors.New("denied")
)

func transitionDeps(current *store.VPS, dispatched *int) TransitionDeps {
	return TransitionDeps{
		Load: func(context.Context, int64) (*store.VPS, error) {
			if current == nil {
				return nil, errGone
			}
			cp := *current
			return &cp, nil
		},
		IsNotFound:      func(err error) bool { return errors.Is(err, errGone) },
		IsStatusChanged: func(err error) bool { return errors.Is(err, errChanged) },
		Authorize:       func(*store.VPS) error { return nil },
		Commit: func(_ context.Context, _ int64, t lifecycle.Transition) (*store.VPS, error) {
			if current.Status != t.From {
				cp := *current
				return &cp, errChanged
			}
			current.Status = t.To
			current.PendingCommand = t.Command
			cp := *current
			return &cp, nil
		},
		Dispatch: func(context.Context, *store.VPS, lifecycle.Transition) { *dispatched++ },
	}
}

func TestRunTransitionCommitsAndDispatches(t *testing.T) {
	v := &store.VPS{ID: 1, Status: lifecycle.StatusStopped}
	var dispatched int
	res := RunTransition(context.Background(), 1, lifecycle.CommandStart, transitionDeps(v, &dispatched))
	if res.Failure != TransitionFailureNone {
		t.Fatalf("unexpected failure %v: %v", res.Failure, res.Err)
	}
	if res.VPS.Status != lifecycle.StatusRunning || res.Transition.From != lifecycle.StatusStopped {
		t.Fatalf("unexpected result: %+v", res)
	}
	if dispatched != 1 {
		t.Fatalf("expected one dispatch, got %d", dispatched)
	}
}

func TestRunTransitionForbiddenBeforeLegality(t *testing.T) {
	v := &store.VPS{ID: 1, Status: lifecycle.StatusRunning}
	var dispatched int
	deps := transitionDeps(v, &dispatched)
	deps.Authorize = func(*store.VPS) error { return errDenied }

	// start on a running VPS is illegal, but the caller is not allowed to know
	res := RunTransition(context.Background(), 1, lifecycle.CommandStart, deps)
	if res.Failure != TransitionFailureForbidden || !errors.Is(res.Err, errDenied) {
		t.Fatalf("expected forbidden, got %v: %v", res.Failure, res.Err)
	}
}

func TestRunTransitionIllegal(t *testing.T) {
	v := &store.VPS{ID: 1, Status: lifecycle.StatusStopped}
	var dispatched int
	res := RunTransition(context.Background(), 1, lifecycle.CommandReboot, transitionDeps(v, &dispatched))
	if res.Failure != TransitionFailureIllegal || !errors.Is(res.Err, lifecycle.ErrIllegalTransition) {
		t.Fatalf("expected illegal, got %v: %v", res.Failure, res.Err)
	}
	if dispatched != 0 {
		t.Fatal("illegal command must not dispatch")
	}
}

func TestRunTransitionRacedReportsWinnerState(t *testing.T) {
	v := &store.VPS{ID: 1, Status: lifecycle.StatusStopped}
	var dispatched int
	deps := transitionDeps(v, &dispatched)
	load := deps.Load
	deps.Load = func(ctx context.Context, id int64) (*store.VPS, error) {
		snapshot, err := load(ctx, id)
		// a concurrent delete lands between read and swap
		v.Status = lifecycle.StatusDeleting
		return snapshot, err
	}

	res := RunTransition(context.Background(), 1, lifecycle.CommandStart, deps)
	if res.Failure != TransitionFailureRaced {
		t.Fatalf("expected raced, got %v: %v", res.Failure, res.Err)
	}
	if res.VPS == nil || res.VPS.Status != lifecycle.StatusDeleting {
		t.Fatalf("expected winner state deleting, got %+v", res.VPS)
	}
	if dispatched != 0 {
		t.Fatal("raced command must not dispatch")
	}
}

func TestRunTransitionNotFound(t *testing.T) {
	var dispatched int
	res := RunTransition(context.Background(), 1, lifecycle.CommandStart, transitionDeps(nil, &dispatched))
	if res.Failure != TransitionFailureNotFound {
		t.Fatalf("expected not found, got %v", res.Failure)
	}
}
