package goVPS

import (
	"context"
	"fmt"
	"strings"

	internalflows "github.com/MrEthical07/goVPS/internal/flows"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/MrEthical07/goVPS/store"
)

// CreateAccount creates an account on behalf of an administrator. Unlike
// [Engine.Register] the caller picks the role.
func (e *Engine) CreateAccount(ctx context.Context, p Principal, req CreateAccountRequest) (*store.Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.Authorize(p, permission.UserCreate); err != nil {
		e.emitAudit(ctx, AuditEvent{Action: AuditCreate, Resource: ResourceUser, ActorID: formatID(p.AccountID)}, err)
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = permission.RoleUser
	}
	if !e.access.Table().Known(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if role != permission.RoleUser || req.Disabled {
		if err := e.Authorize(p, permission.UserRole); err != nil {
			return nil, err
		}
	}

	id, err := internalflows.RunRegister(ctx, internalflows.RegisterRequest{
		Email:    strings.TrimSpace(req.Email),
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
		FullName: strings.TrimSpace(req.FullName),
		Role:     string(role),
		Active:   !req.Disabled,
	}, e.registerFlowDeps(p))
	if err != nil {
		return nil, err
	}
	return e.getAccount(ctx, id)
}

// GetAccount returns an account with its secrets cleared. Any caller may read
// its own account.
func (e *Engine) GetAccount(ctx context.Context, p Principal, id int64) (*store.Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.access.AuthorizeAccount(p, permission.UserRead, id); err != nil {
		e.metricInc(MetricForbidden)
		return nil, err
	}
	return e.getAccount(ctx, id)
}

func (e *Engine) getAccount(ctx context.Context, id int64) (*store.Account, error) {
	a, err := e.store.AccountByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("account", id)
		}
		return nil, err
	}
	return sanitizeAccount(a), nil
}

func (e *Engine) ListAccounts(ctx context.Context, p Principal, filter store.AccountFilter) ([]store.Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.Authorize(p, permission.UserRead); err != nil {
		return nil, err
	}
	if e.access.OwnerScoped(p) {
		a, err := e.getAccount(ctx, p.AccountID)
		if err != nil {
			return nil, err
		}
		return []store.Account{*a}, nil
	}
	filter.Limit, filter.Offset = pageBounds(filter.Limit, filter.Offset)
	accounts, err := e.store.ListAccounts(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		accounts[i] = *sanitizeAccount(&accounts[i])
	}
	return accounts, nil
}

// UpdateAccount applies a profile patch. Role and active flag changes need
// user:role, even on the caller's own account.
func (e *Engine) UpdateAccount(ctx context.Context, p Principal, id int64, upd AccountUpdate) (*store.Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	patch := store.AccountPatch{
		FullName: upd.FullName,
		Role:     upd.Role,
		Active:   upd.Active,
	}
	audit := AuditEvent{
		Action:     AuditUpdate,
		Resource:   ResourceUser,
		ResourceID: formatID(id),
		ActorID:    formatID(p.AccountID),
	}
	if err := e.access.AuthorizeAccountUpdate(p, id, patch); err != nil {
		e.metricInc(MetricForbidden)
		e.emitAudit(ctx, audit, err)
		return nil, err
	}

	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		patch.Email = &email
	}
	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		if err := validateUsername(username); err != nil {
			return nil, err
		}
		patch.Username = &username
	}
	if upd.Role != nil && !e.access.Table().Known(*upd.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, *upd.Role)
	}
	if upd.Active != nil && !*upd.Active && id == p.AccountID {
		return nil, fmt.Errorf("%w: cannot disable your own account", ErrConflict)
	}

	a, err := e.store.UpdateAccount(ctx, id, patch, e.now().UTC())
	if err != nil {
		if isNotFound(err) {
			err = notFound("account", id)
		} else {
			err = mapStoreErr(err)
		}
		e.emitAudit(ctx, audit, err)
		return nil, err
	}
	e.emitAudit(ctx, audit, nil)
	return sanitizeAccount(a), nil
}

// DeleteAccount removes an account. Deleting your own account is a conflict.
func (e *Engine) DeleteAccount(ctx context.Context, p Principal, id int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	audit := AuditEvent{
		Action:     AuditDelete,
		Resource:   ResourceUser,
		ResourceID: formatID(id),
		ActorID:    formatID(p.AccountID),
	}
	if err := e.access.AuthorizeAccount(p, permission.UserDelete, id); err != nil {
		e.metricInc(MetricForbidden)
		e.emitAudit(ctx, audit, err)
		return err
	}
	if id == p.AccountID {
		err := fmt.Errorf("%w: cannot delete your own account", ErrConflict)
		e.emitAudit(ctx, audit, err)
		return err
	}
	if err := e.store.DeleteAccount(ctx, id); err != nil {
		if isNotFound(err) {
			err = notFound("account", id)
		} else {
			err = mapStoreErr(err)
		}
		e.emitAudit(ctx, audit, err)
		return err
	}
	e.emitAudit(ctx, audit, nil)
	return nil
}

// ChangePassword replaces the caller's password after verifying the current one.
func (e *Engine) ChangePassword(ctx context.Context, p Principal, current, next string) error {
	if err := e.ready(); err != nil {
		return err
	}
	a, err := e.store.AccountByID(ctx, p.AccountID)
	if err != nil {
		if isNotFound(err) {
			return ErrAccountNotFound
		}
		return err
	}
	audit := AuditEvent{
		Action:     AuditUpdate,
		Resource:   ResourceUser,
		ResourceID: formatID(a.ID),
		ActorID:    formatID(a.ID),
		Metadata:   map[string]string{"field": "password"},
	}

	identity := passwordChangeIdentity(a.ID)
	throttled, err := e.throttle.ShouldThrottle(ctx, identity)
	if err != nil {
		e.logger.Error("password change throttle check failed", "account_id", a.ID, "error", err)
		return ErrThrottleUnavailable
	}
	if throttled {
		e.metricInc(MetricLoginThrottled)
		err := fmt.Errorf("%w: password change", ErrThrottled)
		e.emitAudit(ctx, audit, err)
		return err
	}

	ok, err := e.hasher.Verify(current, a.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		if _, recErr := e.throttle.RecordFailure(ctx, identity); recErr != nil {
			e.logger.Error("password change failure not counted", "account_id", a.ID, "error", recErr)
		}
		err = wrapInvalidCredentials(errPasswordMismatch)
		e.emitAudit(ctx, audit, err)
		return err
	}
	if err := e.throttle.Reset(ctx, identity); err != nil {
		e.logger.Warn("password change throttle not reset", "account_id", a.ID, "error", err)
	}
	if err := e.validatePassword(next); err != nil {
		return err
	}
	hash, err := e.hasher.Hash(next)
	if err != nil {
		return err
	}
	if _, err := e.store.UpdateAccount(ctx, a.ID, store.AccountPatch{PasswordHash: &hash}, e.now().UTC()); err != nil {
		return mapStoreErr(err)
	}
	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, audit, nil)
	return nil
}

// passwordChangeIdentity keys wrong current-password attempts by account,
// apart from the login counters.
func passwordChangeIdentity(id int64) string {
	return "pwchange:" + formatID(id)
}

func wrapInvalidCredentials(cause error) error {
	return fmt.Errorf("%w: %w", ErrInvalidCredentials, cause)
}

// sanitizeAccount returns a copy without the password hash or TOTP secret.
func sanitizeAccount(a *store.Account) *store.Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.PasswordHash = ""
	cp.TOTPSecret = ""
	return &cp
}
