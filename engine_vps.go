package goVPS

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/goVPS/access"
	"github.com/MrEthical07/goVPS/hypervisor"
	internalflows "github.com/MrEthical07/goVPS/internal/flows"
	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/MrEthical07/goVPS/store"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
	maxVPSNameLength = 100
)

/*
====================================
CREATE / READ / UPDATE
====================================
*/

// CreateVPS records a new instance in status creating. The image must exist
// and be active, and the owner and optional host must exist. With
// StartOnCreate set a start command is committed and dispatched right away.
func (e *Engine) CreateVPS(ctx context.Context, p Principal, req CreateVPSRequest) (*store.VPS, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.Authorize(p, permission.VPSCreate); err != nil {
		e.emitAudit(ctx, AuditEvent{Action: AuditCreate, Resource: ResourceVPS, ActorID: formatID(p.AccountID)}, err)
		return nil, err
	}

	owner := req.OwnerID
	if owner == 0 {
		owner = p.AccountID
	}
	if e.access.OwnerScoped(p) && owner != p.AccountID {
		e.metricInc(MetricForbidden)
		return nil, fmt.Errorf("%w: cannot create instances for account %d", ErrForbidden, owner)
	}

	v, err := e.newVPS(req, owner)
	if err != nil {
		return nil, err
	}
	if err := e.checkVPSReferences(ctx, v); err != nil {
		return nil, err
	}

	if err := e.store.CreateVPS(ctx, v); err != nil {
		err = mapStoreErr(err)
		e.emitAudit(ctx, AuditEvent{Action: AuditCreate, Resource: ResourceVPS, ActorID: formatID(p.AccountID)}, err)
		return nil, err
	}
	e.metricInc(MetricVPSCreated)
	e.emitAudit(ctx, AuditEvent{
		Action:     AuditCreate,
		Resource:   ResourceVPS,
		ResourceID: formatID(v.ID),
		ActorID:    formatID(p.AccountID),
		NewStatus:  v.Status,
		Metadata:   map[string]string{"name": v.Name, "owner_id": formatID(v.OwnerID)},
	}, nil)

	if req.StartOnCreate {
		started, err := e.runTransition(ctx, p, v.ID, lifecycle.CommandStart, func(*store.VPS) error { return nil })
		if err != nil {
			e.logger.Warn("start on create failed", "vps_id", v.ID, "error", err)
			return v, nil
		}
		return started, nil
	}
	return v, nil
}

func (e *Engine) newVPS(req CreateVPSRequest, owner int64) (*store.VPS, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > maxVPSNameLength {
		return nil, fmt.Errorf("%w: name must be 1 to %d characters", ErrValidation, maxVPSNameLength)
	}
	if req.CPUCores < 1 {
		return nil, fmt.Errorf("%w: cpu_cores must be at least 1", ErrValidation)
	}
	if req.RAMGB <= 0 {
		return nil, fmt.Errorf("%w: ram_gb must be positive", ErrValidation)
	}
	if req.StorageGB < 1 {
		return nil, fmt.Errorf("%w: storage_gb must be at least 1", ErrValidation)
	}
	network := req.NetworkType
	if network == "" {
		network = store.NetworkPublicIPv4
	}
	if !network.Valid() {
		return nil, fmt.Errorf("%w: unknown network type %q", ErrValidation, network)
	}
	action := req.ExpirationAction
	if action == "" {
		action = store.ExpireNotify
	}
	if !action.Valid() {
		return nil, fmt.Errorf("%w: unknown expiration action %q", ErrValidation, action)
	}

	now := e.now().UTC()
	v := &store.VPS{
		ExternalID:       uuid.New(),
		Name:             name,
		CPUCores:         req.CPUCores,
		RAMGB:            req.RAMGB,
		StorageGB:        req.StorageGB,
		ImageID:          req.ImageID,
		NetworkType:      network,
		OwnerID:          owner,
		Status:           lifecycle.Initial(),
		ExpirationAction: action,
		AutoBackups:      req.AutoBackups,
		StartOnCreate:    req.StartOnCreate,
		CloudInit:        req.CloudInit,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.HostID != nil {
		h := *req.HostID
		v.HostID = &h
	}
	if req.ExpiresAt != nil {
		t := req.ExpiresAt.UTC()
		v.ExpiresAt = &t
	}
	return v, nil
}

func (e *Engine) checkVPSReferences(ctx context.Context, v *store.VPS) error {
	img, err := e.store.ImageByID(ctx, v.ImageID)
	switch {
	case isNotFound(err):
		return notFound("image", v.ImageID)
	case err != nil:
		return err
	case !img.IsActive:
		return fmt.Errorf("%w: image %d is not active", ErrNotFound, v.ImageID)
	}

	if _, err := e.store.AccountByID(ctx, v.OwnerID); err != nil {
		if isNotFound(err) {
			return notFound("account", v.OwnerID)
		}
		return err
	}

	if v.HostID != nil {
		if _, err := e.store.HostByID(ctx, *v.HostID); err != nil {
			if isNotFound(err) {
				return notFound("host", *v.HostID)
			}
			return err
		}
	}
	return nil
}

// GetVPS returns the instance if p may read it.
func (e *Engine) GetVPS(ctx context.Context, p Principal, id int64) (*store.VPS, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.loadVPS(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.access.AuthorizeVPS(p, permission.VPSRead, v); err != nil {
		e.metricInc(MetricForbidden)
		return nil, err
	}
	return v, nil
}

// ListVPS lists instances visible to p. Owner-scoped callers only ever see
// their own, whatever owner they ask for.
func (e *Engine) ListVPS(ctx context.Context, p Principal, opts VPSListOptions) ([]store.VPS, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	owner, err := e.access.VPSFilter(p, opts.OwnerID)
	if err != nil {
		e.metricInc(MetricForbidden)
		return nil, err
	}
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, opts.Status)
	}
	limit, offset := pageBounds(opts.Limit, opts.Offset)
	return e.store.ListVPS(ctx, store.VPSFilter{
		OwnerID: owner,
		Status:  opts.Status,
		Limit:   limit,
		Offset:  offset,
	})
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// UpdateVPS applies a field patch. Resizing needs vps:resize and renaming is
// closed to owner-scoped roles. A deleting instance cannot be updated.
func (e *Engine) UpdateVPS(ctx context.Context, p Principal, id int64, patch store.VPSPatch) (*store.VPS, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.loadVPS(ctx, id)
	if err != nil {
		return nil, err
	}
	audit := AuditEvent{
		Action:      AuditUpdate,
		Resource:    ResourceVPS,
		ResourceID:  formatID(id),
		ActorID:     formatID(p.AccountID),
		PriorStatus: v.Status,
	}
	if err := e.access.AuthorizeVPSUpdate(p, v, patch); err != nil {
		e.metricInc(MetricForbidden)
		e.emitAudit(ctx, audit, err)
		return nil, err
	}
	patch, err = normalizeVPSPatch(patch)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return v, nil
	}
	if v.Status == lifecycle.StatusDeleting {
		err := fmt.Errorf("%w: vps %d is being deleted", ErrConflict, id)
		e.emitAudit(ctx, audit, err)
		return nil, err
	}

	updated, err := e.store.UpdateVPS(ctx, id, patch, e.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrStatusChanged) {
			err = fmt.Errorf("%w: vps %d is being deleted", ErrConflict, id)
		} else {
			err = mapStoreErr(err)
		}
		e.emitAudit(ctx, audit, err)
		return nil, err
	}
	audit.NewStatus = updated.Status
	e.emitAudit(ctx, audit, nil)
	return updated, nil
}

func normalizeVPSPatch(patch store.VPSPatch) (store.VPSPatch, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" || utf8.RuneCountInString(name) > maxVPSNameLength {
			return patch, fmt.Errorf("%w: name must be 1 to %d characters", ErrValidation, maxVPSNameLength)
		}
		patch.Name = &name
	}
	if patch.CPUCores != nil && *patch.CPUCores < 1 {
		return patch, fmt.Errorf("%w: cpu_cores must be at least 1", ErrValidation)
	}
	if patch.RAMGB != nil && *patch.RAMGB <= 0 {
		return patch, fmt.Errorf("%w: ram_gb must be positive", ErrValidation)
	}
	if patch.StorageGB != nil && *patch.StorageGB < 1 {
		return patch, fmt.Errorf("%w: storage_gb must be at least 1", ErrValidation)
	}
	if patch.ExpirationAction != nil && !patch.ExpirationAction.Valid() {
		return patch, fmt.Errorf("%w: unknown expiration action %q", ErrValidation, *patch.ExpirationAction)
	}
	return patch, nil
}

func (e *Engine) loadVPS(ctx context.Context, id int64) (*store.VPS, error) {
	v, err := e.store.VPSByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("vps", id)
		}
		return nil, err
	}
	return v, nil
}

/*
====================================
LIFECYCLE COMMANDS
====================================
*/

func (e *Engine) StartVPS(ctx context.Context, p Principal, id int64) (*store.VPS, error) {
	return e.TransitionVPS(ctx, p, id, lifecycle.CommandStart)
}

func (e *Engine) StopVPS(ctx context.Context, p Principal, id int64) (*store.VPS, error) {
	return e.TransitionVPS(ctx, p, id, lifecycle.CommandStop)
}

func (e *Engine) RebootVPS(ctx context.Context, p Principal, id int64) (*store.VPS, error) {
	return e.TransitionVPS(ctx, p, id, lifecycle.CommandReboot)
}

// DeleteVPS moves the instance to deleting, which is terminal.
func (e *Engine) DeleteVPS(ctx context.Context, p Principal, id int64) (*store.VPS, error) {
	return e.TransitionVPS(ctx, p, id, lifecycle.CommandDelete)
}

// TransitionVPS applies a lifecycle command. The new status is committed by
// compare-and-swap before the hypervisor is told, and the returned VPS carries
// the command as pending. A command that loses the swap to a concurrent one
// fails with a *TransitionConflict naming the status the winner left.
func (e *Engine) TransitionVPS(ctx context.Context, p Principal, id int64, cmd lifecycle.Command) (*store.VPS, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, ok := access.CommandCapability(cmd); !ok {
		return nil, fmt.Errorf("%w: unknown command %q", ErrValidation, cmd)
	}
	return e.runTransition(ctx, p, id, cmd, func(v *store.VPS) error {
		return e.access.AuthorizeCommand(p, cmd, v)
	})
}

func (e *Engine) runTransition(ctx context.Context, actor Principal, id int64, cmd lifecycle.Command, authorize func(*store.VPS) error) (*store.VPS, error) {
	res := internalflows.RunTransition(ctx, id, cmd, internalflows.TransitionDeps{
		Load:       e.store.VPSByID,
		IsNotFound: isNotFound,
		IsStatusChanged: func(err error) bool {
			return errors.Is(err, store.ErrStatusChanged)
		},
		Authorize: authorize,
		Commit: func(ctx context.Context, id int64, t lifecycle.Transition) (*store.VPS, error) {
			return e.store.TransitionVPS(ctx, id, t.From, t.To, t.Command, e.now().UTC())
		},
		Dispatch: e.dispatch,
	})

	var prior lifecycle.Status
	if res.VPS != nil {
		prior = res.VPS.Status
	}

	var err error
	switch res.Failure {
	case internalflows.TransitionFailureNone:
		e.metricInc(MetricVPSTransition)
		e.auditTransition(ctx, actor, id, cmd, res.Transition.From, res.Transition.To, nil)
		return res.VPS, nil
	case internalflows.TransitionFailureNotFound:
		err = notFound("vps", id)
	case internalflows.TransitionFailureForbidden:
		e.metricInc(MetricForbidden)
		err = res.Err
	case internalflows.TransitionFailureIllegal:
		e.metricInc(MetricVPSTransitionRejected)
		err = &TransitionConflict{VPSID: id, Command: cmd, Observed: prior, cause: res.Err}
	case internalflows.TransitionFailureRaced:
		e.metricInc(MetricVPSTransitionRaced)
		// res.VPS is what the winner committed; the loser's view was res.Transition.From.
		prior = res.Transition.From
		var now lifecycle.Status
		if res.VPS != nil {
			now = res.VPS.Status
		}
		err = &TransitionConflict{VPSID: id, Command: cmd, Observed: now, Raced: true, cause: res.Err}
	default:
		err = res.Err
	}
	e.auditTransition(ctx, actor, id, cmd, prior, prior, err)
	return nil, err
}

/*
====================================
HYPERVISOR
====================================
*/

// dispatch hands a committed transition to the hypervisor workers. A full
// queue is recorded on the VPS as a command error; the status stays committed.
func (e *Engine) dispatch(ctx context.Context, v *store.VPS, t lifecycle.Transition) {
	err := e.hypervisor.Submit(hypervisor.Command{
		VPSID:      v.ID,
		ExternalID: v.ExternalID,
		HostID:     v.HostID,
		Command:    t.Command,
		Target:     t.To,
	})
	if err == nil {
		return
	}

	e.metricInc(MetricHypervisorDropped)
	e.logger.Warn("hypervisor command not dispatched", "vps_id", v.ID, "command", t.Command, "error", err)
	if _, recErr := e.store.RecordObservation(context.WithoutCancel(ctx), v.ID, store.Observation{
		Command: t.Command,
		Err:     err.Error(),
		At:      e.now().UTC(),
	}); recErr != nil {
		e.logger.Error("hypervisor drop not recorded", "vps_id", v.ID, "error", recErr)
	}
}

// onHypervisorResult runs on a dispatcher worker for every finished command.
// A timeout leaves the command pending and the recorded status untouched.
func (e *Engine) onHypervisorResult(ctx context.Context, res hypervisor.Result) {
	e.metrics.Observe(MetricHypervisorLatency, res.Duration)

	cmd := res.Command
	obs := store.Observation{Command: cmd.Command, At: e.now().UTC()}
	switch res.Outcome {
	case hypervisor.OutcomeConfirmed:
		e.metricInc(MetricHypervisorConfirmed)
		obs.Observed = res.Observed
		if obs.Observed == "" {
			obs.Observed = cmd.Target
		}
	case hypervisor.OutcomeFailed:
		e.metricInc(MetricHypervisorFailed)
		e.logger.Warn("hypervisor command failed", "vps_id", cmd.VPSID, "command", cmd.Command, "error", res.Err)
		obs.Observed = res.Observed
		obs.Err = errorText(res.Err)
	case hypervisor.OutcomePending:
		e.metricInc(MetricHypervisorPending)
		e.logger.Warn("hypervisor command still pending", "vps_id", cmd.VPSID, "command", cmd.Command,
			"elapsed", res.Duration, "abandoned", res.Abandoned, "error", res.Err)
		return
	default:
		return
	}

	v, err := e.store.RecordObservation(ctx, cmd.VPSID, obs)
	if err != nil {
		e.logger.Error("hypervisor result not recorded", "vps_id", cmd.VPSID, "command", cmd.Command, "error", err)
		return
	}
	if v.Diverged() {
		e.logger.Warn("vps status diverged", "vps_id", v.ID, "recorded", v.Status, "observed", v.ObservedStatus)
	}
}

// ConfirmVPSObservation records a late hypervisor report, typically for a
// command that timed out earlier. The pending command is cleared only if cmd
// matches it. cmdErr is empty when the command succeeded.
func (e *Engine) ConfirmVPSObservation(ctx context.Context, p Principal, id int64, cmd lifecycle.Command, observed lifecycle.Status, cmdErr string) (*store.VPS, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.Authorize(p, permission.HostManage); err != nil {
		return nil, err
	}
	if _, ok := access.CommandCapability(cmd); !ok {
		return nil, fmt.Errorf("%w: unknown command %q", ErrValidation, cmd)
	}
	if observed != "" && !observed.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, observed)
	}

	v, err := e.store.RecordObservation(ctx, id, store.Observation{
		Command:  cmd,
		Observed: observed,
		Err:      cmdErr,
		At:       e.now().UTC(),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("vps", id)
		}
		return nil, err
	}
	e.emitAudit(ctx, AuditEvent{
		Action:      AuditUpdate,
		Resource:    ResourceVPS,
		ResourceID:  formatID(id),
		ActorID:     formatID(p.AccountID),
		PriorStatus: v.Status,
		NewStatus:   v.Status,
		Metadata:    map[string]string{"observed": string(observed), "command": string(cmd)},
	}, nil)
	return v, nil
}

// AuthorizeRemoteShell checks that p may open a shell on the instance and
// that the instance can take one: private network only and running.
func (e *Engine) AuthorizeRemoteShell(ctx context.Context, p Principal, id int64) (*RemoteShellGrant, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.loadVPS(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.access.AuthorizeRemoteShell(p, v); err != nil {
		e.metricInc(MetricForbidden)
		return nil, err
	}
	if v.NetworkType != store.NetworkPrivateOnly {
		return nil, fmt.Errorf("%w: remote shell needs a private_only instance", ErrConflict)
	}
	if v.Status != lifecycle.StatusRunning {
		return nil, fmt.Errorf("%w: vps %d is %s, not running", ErrConflict, id, v.Status)
	}
	return &RemoteShellGrant{
		VPSID:      v.ID,
		ExternalID: v.ExternalID,
		PrivateIP:  v.PrivateIP,
		HostID:     v.HostID,
	}, nil
}

func errorText(err error) string {
	if err == nil {
		return "unknown hypervisor error"
	}
	return err.Error()
}
