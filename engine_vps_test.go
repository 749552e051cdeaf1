package goVPS

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goVPS/hypervisor"
	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/MrEthical07/goVPS/store"
)

type vpsFixture struct {
	*testEnv
	admin Principal
	alice Principal
	bob   Principal
	image *store.Image
}

func newVPSFixture(t *testing.T, opts ...testOption) *vpsFixture {
	t.Helper()
	env := newTestEnv(t, opts...)
	return &vpsFixture{
		testEnv: env,
		admin:   principalOf(env.seedAccount(t, "admin@example.com", "admin", "admin-pass", permission.RoleAdmin)),
		alice:   principalOf(env.seedAccount(t, "alice@example.com", "alice", "alice-pass", permission.RoleUser)),
		bob:     principalOf(env.seedAccount(t, "bob@example.com", "bob", "bob-pass", permission.RoleUser)),
		image:   env.seedImage(t, "ubuntu-22.04"),
	}
}

func TestUserCannotTouchAnotherOwnersVPS(t *testing.T) {
	f := newVPSFixture(t)
	ctx := context.Background()
	v := f.seedVPS(t, f.bob.AccountID, f.image.ID, lifecycle.StatusStopped)

	if _, err := f.engine.GetVPS(ctx, f.alice, v.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("GetVPS: expected ErrForbidden, got %v", err)
	}
	if _, err := f.engine.StartVPS(ctx, f.alice, v.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("StartVPS: expected ErrForbidden, got %v", err)
	}
	got, err := f.engine.GetVPS(ctx, f.bob, v.ID)
	if err != nil {
		t.Fatalf("owner GetVPS: %v", err)
	}
	if got.Status != lifecycle.StatusStopped {
		t.Fatalf("status changed by a forbidden command: %s", got.Status)
	}
}

func TestUserCannotDeleteOwnVPS(t *testing.T) {
	f := newVPSFixture(t)
	v := f.seedVPS(t, f.alice.AccountID, f.image.ID, lifecycle.StatusRunning)
	if _, err := f.engine.DeleteVPS(context.Background(), f.alice, v.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestIllegalTransitionsConflict(t *testing.T) {
	f := newVPSFixture(t)
	ctx := context.Background()

	running := f.seedVPS(t, f.alice.AccountID, f.image.ID, lifecycle.StatusRunning)
	_, err := f.engine.StartVPS(ctx, f.alice, running.ID)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("start running: expected ErrConflict, got %v", err)
	}
	var tc *TransitionConflict
	if !errors.As(err, &tc) || tc.Observed != lifecycle.StatusRunning || tc.Raced {
		t.Fatalf("unexpected conflict detail %+v", tc)
	}
	if !errors.Is(err, lifecycle.ErrIllegalTransition) {
		t.Fatal("conflict should wrap the state machine error")
	}
	if msg := ExternalMessage(err); msg == "internal error" {
		t.Fatalf("conflict should carry detail, got %q", msg)
	}

	stopped := f.seedVPS(t, f.alice.AccountID, f.image.ID, lifecycle.StatusStopped)
	if _, err := f.engine.RebootVPS(ctx, f.alice, stopped.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("reboot stopped: expected ErrConflict, got %v", err)
	}
	if _, err := f.engine.StopVPS(ctx, f.alice, stopped.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("stop stopped: expected ErrConflict, got %v", err)
	}
}

func TestDeletingVPSStillAcceptsLifecycleCommands(t *testing.T) {
	f := newVPSFixture(t)
	ctx := context.Background()
	v := f.seedVPS(t, f.alice.AccountID, f.image.ID, lifecycle.StatusRunning)

	deleted, err := f.engine.DeleteVPS(ctx, f.admin, v.ID)
	if err != nil {
		t.Fatalf("DeleteVPS: %v", err)
	}
	if deleted.Status != lifecycle.StatusDeleting {
		t.Fatalf("status = %s", deleted.Status)
	}
	again, err := f.engine.DeleteVPS(ctx, f.admin, v.ID)
	if err != nil || again.Status != lifecycle.StatusDeleting {
		t.Fatalf("second delete: %+v, %v", again, err)
	}
	if _, err := f.engine.RebootVPS(ctx, f.admin, v.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("reboot while deleting: expected ErrConflict, got %v", err)
	}
	name := "renamed"
	if _, err := f.engine.UpdateVPS(ctx, f.admin, v.ID, store.VPSPatch{Name: &name}); !errors.Is(err, ErrConflict) {
		t.Fatalf("update deleting: expected ErrConflict, got %v", err)
	}

	started, err := f.engine.StartVPS(ctx, f.alice, v.ID)
	if err != nil || started.Status != lifecycle.StatusRunning {
		t.Fatalf("start from deleting: %+v, %v", started, err)
	}
	if _, err := f.engine.DeleteVPS(ctx, f.admin, v.ID); err != nil {
		t.Fatal(err)
	}
	stopped, err := f.engine.StopVPS(ctx, f.alice, v.ID)
	if err != nil || stopped.Status != lifecycle.StatusStopped {
		t.Fatalf("stop from deleting: %+v, %v", stopped, err)
	}
}

func TestTransitionAuditedWithStatuses(t *testing.T) {
	f := newVPSFixture(t)
	ctx := context.Background()
	v := f.seedVPS(t, f.alice.AccountID, f.image.ID, lifecycle.StatusStopped)

	if _, err := f.engine.StartVPS(ctx, f.alice, v.ID); err != nil {
		t.Fatal(err)
	}
	_, _ = f.engine.StartVPS(ctx, f.alice, v.ID)
	f.engine.Close()

	events := f.sink.find(AuditStart, ResourceVPS)
	if len(events) != 2 {
		t.Fatalf("got %d start events, want 2", len(events))
	}
	ok, rejected := events[0], events[1]
	if !ok.Success || ok.PriorStatus != lifecycle.StatusStopped || ok.NewStatus != lifecycle.StatusRunning {
		t.Fatalf("success event %+v", ok)
	}
	if rejected.Success || rejected.PriorStatus != lifecycle.StatusRunning || rejected.Error != string(auditErrConflict) {
		t.Fatalf("rejected event %+v", rejected)
	}
}

func TestConcurrentStartsOnlyOneWins(t *testing.T) {
	f := newVPSFixture(t)
	ctx := context.Background()

	for round := 0; round < 50; round++ {
		v := f.seedVPS(t, f.alice.AccountID, f.image.ID, lifecycle.StatusStopped)

		const callers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.engine.StartVPS(ctx, f.alice, v.ID)
				switch {
				case err == nil:
					mu.Lock()
					successes++
					mu.Unlock()
				case !errors.Is(err, ErrConflict):
					t.Errorf("unexpected error %v", err)
				}
			}()
		}
		wg.Wait()
		if successes != 1 {
			t.Fatalf("round %d: %d starts succeeded, want exactly 1", round, successes)
		}
	}
}

func TestConcurrentStartAndDelete(t *testing.T) {
	f := newVPSFixture(t)
	ctx := context.Background()

	for round := 0; round < 50; round++ {
		v := f.seedVPS(t, f.alice.AccountID, f.image.ID, lifecycle.StatusStopped)

		var wg sync.WaitGroup
		var startErr, deleteErr error
		wg.Add(2)
		go func() { defer wg.Done(); _, startErr = f.engine.StartVPS(ctx, f.alice, v.ID) }()
		go func() { defer wg.Done(); _, deleteErr = f.engine.DeleteVPS(ctx, f.admin, v.ID) }()
		wg.Wait()

		// both commands are legal from stopped, running and deleting; losing a swap is the only way to fail
		for name, err := range map[string]error{"start": startErr, "delete": deleteErr} {
			if err == nil {
				continue
			}
			var tc *TransitionConflict
			if !errors.As(err, &tc) || !tc.Raced {
				t.Fatalf("round %d: %s failed with %v", round, name, err)
			}
		}
		if startErr != nil && deleteErr != nil {
			t.Fatalf("round %d: both commands lost", round)
		}

		got, err := f.store.VPSByID(ctx, v.ID)
		if err != nil {
			t.Fatal(err)
		}
		switch {
		case startErr != nil && got.Status != lifecycle.StatusDeleting:
			t.Fatalf("round %d: only delete committed, status %s", round, got.Status)
		case deleteErr != nil && got.Status != lifecycle.StatusRunning:
			t.Fatalf("round %d: only start committed, status %s", round, got.Status)
		case got.Status != lifecycle.StatusDeleting && got.Status != lifecycle.StatusRunning:
			t.Fatalf("round %d: final status %s", round, got.Status)
		}
	}
}

func TestHypervisorConfirmsCommand(t *testing.T) {
	f := newVPSFixture(t)
	ctx := context.Background()
	v := f.seedVPS(t, f.alice.AccountID, f.image.ID, lifecycle.StatusStopped)

	started, err := f.engine.StartVPS(ctx, f.alice, v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if started.Status != lifecycle.StatusRunning {
		t.Fatalf("status = %s, want committed before the hypervisor answers", started.Status)
	}
	waitFor(t, func() bool {
		got, _ := f.store.VPSByID(ctx, v.ID)
		return !got.Pending() && got.ObservedStatus == lifecycle.StatusRunning
	})
}

func TestHypervisorRunsOneVPSCommandsInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []lifecycle.Command
	slowStart := hypervisor.ControllerFunc(func(ctx context.Context, cmd hypervisor.Command) (lifecycle.Status, error) {
		if cmd.Command == lifecycle.CommandStart {
			time.Sleep(50 * time.Millisecond)
		}
		mu.Lock()
		order = append(order, cmd.Command)
		mu.Unlock()
		return cmd.Target, nil
	})
	f := newVPSFixture(t, withController(slowStart))
	ctx := context.Background()
	v := f.seedVPS(t, f.alice.AccountID, f.image.ID, lifecycle.StatusStopped)

	if _, err := f.engine.StartVPS(ctx, f.alice, v.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.StopVPS(ctx, f.alice, v.ID); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	})
	waitFor(t, func() bool {
		got, _ := f.store.VPSByID(ctx, v.ID)
		return !got.Pending()
	})

	mu.Lock()
	if order[0] != lifecycle.CommandStart || order[1] != lifecycle.CommandStop {
		t.Fatalf("hypervisor ran %v, want [start stop]", order)
	}
	mu.Unlock()
	got, _ := f.store.VPSByID(ctx, v.ID)
	if got.Status != lifecycle.StatusStopped || got.ObservedStatus != lifecycle.StatusStopped {
		t.Fatalf("recorded %s observed %s", got.Status, got.ObservedStatus)
	}
}

func TestHypervisorTimeoutLeavesCommandPending(t *testing.T) {
	blocking := hypervisor.ControllerFunc(func(ctx context.Context, _ hypervisor.Command) (lifecycle.Status, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	f := newVPSFixture(t, withController(blocking))
	ctx := context.Background()
	v := f.seedVPS(t, f.alice.AccountID, f.image.ID, lifecycle.StatusStopped)

	if _, err := f.engine.StartVPS(ctx, f.alice, v.ID); err != nil {
		t.Fatalf("a slow hypervisor must not fail the command: %v", err)
	}
	waitFor(t, func() bool { return f.engine.metrics.Value(MetricHypervisorPending) == 1 })

	got, err := f.store.VPSByID(ctx, v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != lifecycle.StatusRunning || got.PendingCommand != lifecycle.CommandStart {
		t.Fatalf("after timeout: status %s pending %q", got.Status, got.PendingCommand)
	}

	// the late answer arrives out of band
	if _, err := f.engine.ConfirmVPSObservation(ctx, f.alice, v.ID, lifecycle.CommandStart, lifecycle.StatusRunning, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("user confirm: expected ErrForbidden, got %v", err)
	}
	confirmed, err := f.engine.ConfirmVPSObservation(ctx, f.admin, v.ID, lifecycle.CommandStart, lifecycle.StatusRunning, "")
	if err != nil {
		t.Fatalf("ConfirmVPSObservation: %v", err)
	}
	if confirmed.Pending() || confirmed.Diverged() {
		t.Fatalf("after confirm: %+v", confirmed)
	}
}

func TestHypervisorFailureRecordedAsDivergence(t *testing.T) {
	failing := hypervisor.ControllerFunc(func(context.Context, hypervisor.Command) (lifecycle.Status, error) {
		return lifecycle.StatusError, errors.New("disk image missing")
	})
	f := newVPSFixture(t, withController(failing))
	ctx := context.Background()
	v := f.seedVPS(t, f.alice.AccountID, f.image.ID, lifecycle.StatusStopped)

	if _, err := f.engine.StartVPS(ctx, f.alice, v.ID); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		got, _ := f.store.VPSByID(ctx, v.ID)
		return !got.Pending()
	})
	got, _ := f.store.VPSByID(ctx, v.ID)
	if got.Status != lifecycle.StatusRunning {
		t.Fatalf("recorded status rolled back to %s", got.Status)
	}
	if !got.Diverged() || got.LastCommandError != "disk image missing" {
		t.Fatalf("failure not recorded: %+v", got)
	}
}

func TestCreateVPS(t *testing.T) {
	f := newVPSFixture(t)
	ctx := context.Background()

	if _, err := f.engine.CreateVPS(ctx, f.alice, CreateVPSRequest{Name: "web", CPUCores: 1, RAMGB: 1, StorageGB: 10, ImageID: f.image.ID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("user create: expected ErrForbidden, got %v", err)
	}

	v, err := f.engine.CreateVPS(ctx, f.admin, CreateVPSRequest{
		Name: "web", CPUCores: 2, RAMGB: 2, StorageGB: 20, ImageID: f.image.ID, OwnerID: f.alice.AccountID,
	})
	if err != nil {
		t.Fatalf("CreateVPS: %v", err)
	}
	if v.Status != lifecycle.StatusCreating || v.OwnerID != f.alice.AccountID {
		t.Fatalf("created %+v", v)
	}
	if v.NetworkType != store.NetworkPublicIPv4 || v.ExpirationAction != store.ExpireNotify {
		t.Fatalf("defaults not applied: %+v", v)
	}

	if _, err := f.engine.CreateVPS(ctx, f.admin, CreateVPSRequest{Name: "x", CPUCores: 1, RAMGB: 1, StorageGB: 10, ImageID: 999}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing image: expected ErrNotFound, got %v", err)
	}
	if _, err := f.engine.CreateVPS(ctx, f.admin, CreateVPSRequest{Name: "x", CPUCores: 1, RAMGB: 1, StorageGB: 10, ImageID: f.image.ID, OwnerID: 999}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing owner: expected ErrNotFound, got %v", err)
	}
	if _, err := f.engine.CreateVPS(ctx, f.admin, CreateVPSRequest{Name: "x", CPUCores: 0, RAMGB: 1, StorageGB: 10, ImageID: f.image.ID}); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero cpu: expected ErrValidation, got %v", err)
	}

	autostart, err := f.engine.CreateVPS(ctx, f.admin, CreateVPSRequest{
		Name: "auto", CPUCores: 1, RAMGB: 1, StorageGB: 10, ImageID: f.image.ID, StartOnCreate: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if autostart.Status != lifecycle.StatusRunning {
		t.Fatalf("start on create: status %s", autostart.Status)
	}
}

func TestListVPSPinsUsersToThemselves(t *testing.T) {
	f := newVPSFixture(t)
	ctx := context.Background()
	f.seedVPS(t, f.alice.AccountID, f.image.ID, lifecycle.StatusRunning)
	f.seedVPS(t, f.bob.AccountID, f.image.ID, lifecycle.StatusRunning)
	f.seedVPS(t, f.bob.AccountID, f.image.ID, lifecycle.StatusStopped)

	bobID := f.bob.AccountID
	mine, err := f.engine.ListVPS(ctx, f.alice, VPSListOptions{OwnerID: &bobID})
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].OwnerID != f.alice.AccountID {
		t.Fatalf("alice sees %+v", mine)
	}

	all, err := f.engine.ListVPS(ctx, f.admin, VPSListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("admin sees %d, want 3", len(all))
	}
	bobs, err := f.engine.ListVPS(ctx, f.admin, VPSListOptions{OwnerID: &bobID, Status: lifecycle.StatusStopped})
	if err != nil {
		t.Fatal(err)
	}
	if len(bobs) != 1 {
		t.Fatalf("filtered list has %d, want 1", len(bobs))
	}
}

func TestUpdateVPSFieldRules(t *testing.T) {
	f := newVPSFixture(t)
	ctx := context.Background()
	v := f.seedVPS(t, f.alice.AccountID, f.image.ID, lifecycle.StatusRunning)

	cores := 4
	if _, err := f.engine.UpdateVPS(ctx, f.alice, v.ID, store.VPSPatch{CPUCores: &cores}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("user resize: expected ErrForbidden, got %v", err)
	}
	name := "renamed"
	if _, err := f.engine.UpdateVPS(ctx, f.alice, v.ID, store.VPSPatch{Name: &name}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("user rename: expected ErrForbidden, got %v", err)
	}
	backups := true
	updated, err := f.engine.UpdateVPS(ctx, f.alice, v.ID, store.VPSPatch{AutoBackups: &backups})
	if err != nil {
		t.Fatalf("user backups: %v", err)
	}
	if !updated.AutoBackups {
		t.Fatal("auto backups not applied")
	}
	updated, err = f.engine.UpdateVPS(ctx, f.admin, v.ID, store.VPSPatch{CPUCores: &cores, Name: &name})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.CPUCores != 4 || updated.Name != "renamed" {
		t.Fatalf("admin update not applied: %+v", updated)
	}
}

func TestAuthorizeRemoteShell(t *testing.T) {
	f := newVPSFixture(t)
	ctx := context.Background()

	public := f.seedVPS(t, f.alice.AccountID, f.image.ID, lifecycle.StatusRunning)
	if _, err := f.engine.AuthorizeRemoteShell(ctx, f.alice, public.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("public network: expected ErrConflict, got %v", err)
	}

	private := &store.VPS{
		Name: "db", CPUCores: 1, RAMGB: 1, StorageGB: 10, ImageID: f.image.ID,
		NetworkType: store.NetworkPrivateOnly, PrivateIP: "10.0.0.5",
		OwnerID: f.alice.AccountID, Status: lifecycle.StatusRunning,
	}
	if err := f.store.CreateVPS(ctx, private); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.AuthorizeRemoteShell(ctx, f.bob, private.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner: expected ErrForbidden, got %v", err)
	}
	grant, err := f.engine.AuthorizeRemoteShell(ctx, f.alice, private.ID)
	if err != nil {
		t.Fatalf("AuthorizeRemoteShell: %v", err)
	}
	if grant.PrivateIP != "10.0.0.5" || grant.ExternalID != private.ExternalID {
		t.Fatalf("grant %+v", grant)
	}

	if _, err := f.engine.StopVPS(ctx, f.alice, private.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.AuthorizeRemoteShell(ctx, f.alice, private.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("stopped: expected ErrConflict, got %v", err)
	}
}

func TestMissingVPSIsNotFound(t *testing.T) {
	f := newVPSFixture(t)
	if _, err := f.engine.StartVPS(context.Background(), f.admin, 4242); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
