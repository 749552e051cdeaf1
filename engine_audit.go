package goVPS

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/goVPS/lifecycle"
)

// AuditErrorCode is the stable error label stored on failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUnknownIdentity    AuditErrorCode = "unknown_identity"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrTwoFactorRequired  AuditErrorCode = "two_factor_required"
	auditErrInvalidTwoFactor   AuditErrorCode = "invalid_two_factor"
	auditErrThrottled          AuditErrorCode = "throttled"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrAccountNotFound    AuditErrorCode = "account_not_found"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrConflict           AuditErrorCode = "conflict"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrValidation         AuditErrorCode = "validation"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// emitAudit stamps ev with time and request context and queues it. Delivery
// failures never reach the caller.
func (e *Engine) emitAudit(ctx context.Context, ev AuditEvent, err error) {
	if e == nil || e.audit == nil {
		return
	}
	ev.Timestamp = e.now().UTC()
	ev.IP = ClientIPFromContext(ctx)
	ev.UserAgent = userAgentFromContext(ctx)
	ev.Success = err == nil
	if code := auditErrorCode(err); code != "" {
		ev.Error = string(code)
	}
	e.audit.Emit(ctx, ev)
}

func (e *Engine) auditTransition(ctx context.Context, actor Principal, vpsID int64, cmd lifecycle.Command, from, to lifecycle.Status, err error) {
	e.emitAudit(ctx, AuditEvent{
		Action:      commandAction(cmd),
		Resource:    ResourceVPS,
		ResourceID:  formatID(vpsID),
		ActorID:     formatID(actor.AccountID),
		PriorStatus: from,
		NewStatus:   to,
	}, err)
}

func commandAction(cmd lifecycle.Command) AuditAction {
	switch cmd {
	case lifecycle.CommandStart:
		return AuditStart
	case lifecycle.CommandStop:
		return AuditStop
	case lifecycle.CommandReboot:
		return AuditReboot
	case lifecycle.CommandDelete:
		return AuditDelete
	}
	return AuditUpdate
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, errUnknownIdentity):
		return auditErrUnknownIdentity
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrTwoFactorRequired):
		return auditErrTwoFactorRequired
	case errors.Is(err, ErrInvalidTwoFactor):
		return auditErrInvalidTwoFactor
	case errors.Is(err, ErrThrottled):
		return auditErrThrottled
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrUsernameTaken):
		return auditErrDuplicate
	case errors.Is(err, ErrConflict):
		return auditErrConflict
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	default:
		return auditErrInternal
	}
}
